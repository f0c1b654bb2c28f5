package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"appsweep/internal/app"
	"appsweep/internal/clock"
	"appsweep/internal/config"
	"appsweep/internal/discovery"
	"appsweep/internal/engine"
	"appsweep/internal/events"
	"appsweep/internal/fsops"
	"appsweep/internal/logging"
	"appsweep/internal/privilege"
	"appsweep/internal/procsweep"
	"appsweep/internal/removal"
)

// newEngine creates a new engine with real implementations of all
// dependencies.
func newEngine() (*engine.Engine, error) {
	var emitter events.Emitter = events.Nop{}
	if eventsFile != nil {
		emitter = events.NewJSONEmitter(eventsFile)
	}

	return engine.New(engine.Deps{
		Folders:    config.DefaultFolders(),
		FS:         fsops.NewRealFS(),
		Runner:     removal.NewExecToolRunner(),
		Registrar:  removal.RegistryRegistrar{},
		Provider:   app.NewExecSnapshotProvider(),
		Collector:  discovery.DescriptorCollector{},
		Shortcuts:  discovery.ExecShortcutResolver{},
		Controller: procsweep.NewExecController(),
		Elevation:  privilege.Probe{},
		Clock:      &clock.RealClock{},
		Emitter:    emitter,
		Log:        logging.New("engine"),
	}), nil
}

// descriptorFlags collects the ways a command can identify the target
// application: a YAML descriptor file, or the individual fields inline.
type descriptorFlags struct {
	file            string
	name            string
	installLocation string
	displayIcon     string
	packageFamily   string
	uninstallKeys   []string
	hints           []string
	processes       []string
	services        []string
}

// register adds the descriptor flags to a command.
func (d *descriptorFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&d.file, "app", "a", "", "Path to an application descriptor YAML file")
	cmd.Flags().StringVarP(&d.name, "name", "n", "", "Application display name")
	cmd.Flags().StringVar(&d.installLocation, "install-location", "", "Install directory from the uninstall registry entry")
	cmd.Flags().StringVar(&d.displayIcon, "display-icon", "", "DisplayIcon value from the uninstall registry entry")
	cmd.Flags().StringVar(&d.packageFamily, "package-family", "", "Packaged-app family name, e.g. Publisher.App_abc123")
	cmd.Flags().StringArrayVar(&d.uninstallKeys, "uninstall-key", nil, "Uninstall registry key to remove (repeatable)")
	cmd.Flags().StringArrayVar(&d.hints, "hint", nil, "Known artifact directory (repeatable)")
	cmd.Flags().StringArrayVar(&d.processes, "process", nil, "Related process image name or path (repeatable)")
	cmd.Flags().StringArrayVar(&d.services, "service", nil, "Related service name (repeatable)")
}

// resolve builds the descriptor. A file wins over inline flags.
func (d *descriptorFlags) resolve() (*app.Descriptor, error) {
	if d.file != "" {
		return app.LoadDescriptor(d.file)
	}

	desc := &app.Descriptor{
		Name: d.name,
		Registry: app.RegistryHints{
			InstallLocation: d.installLocation,
			DisplayIcon:     d.displayIcon,
			UninstallKeys:   d.uninstallKeys,
		},
		PackageFamilyName: d.packageFamily,
		ArtifactHints:     d.hints,
		ProcessHints:      d.processes,
		ServiceHints:      d.services,
	}
	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid descriptor flags: %w", err)
	}
	return desc, nil
}

// formatBytes renders a byte count for humans.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// outputJSON outputs a value as JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
