// Package discovery enumerates candidate artifacts for removal.
//
// Authoritative sources (registry values, hints, package-family paths)
// seed the artifact list and the trust-anchor set. Heuristic token scans
// then run strictly inside anchored territory under known parent roots,
// bounded by per-scope budgets, so one shared name token can never pull
// an unrelated application into the candidate list.
package discovery

import (
	"fmt"
	"log/slog"
	"strings"

	"appsweep/internal/app"
	"appsweep/internal/artifact"
	"appsweep/internal/clock"
	"appsweep/internal/config"
	"appsweep/internal/events"
	"appsweep/internal/fsops"
	"appsweep/internal/procsweep"
	"appsweep/internal/safety"
	"appsweep/internal/trust"
	"appsweep/internal/winpath"
)

// maxShortcutMatches caps how many start-menu shortcuts one run may keep.
const maxShortcutMatches = 10

// Report is the discovery output: the artifact list plus human-readable
// decision details for the activity log.
type Report struct {
	Artifacts []*artifact.Artifact
	Details   []string
	Anchors   []trust.Anchor
	Tokens    []string
}

// Engine discovers artifacts for one descriptor at a time.
type Engine struct {
	folders   *config.KnownFolders
	fs        fsops.FS
	collector Collector
	shortcuts ShortcutResolver
	blocked   *safety.BlockedRoots
	emitter   events.Emitter
	clock     clock.Clock
	log       *slog.Logger
}

// NewEngine creates a discovery engine.
func NewEngine(folders *config.KnownFolders, fs fsops.FS, collector Collector, shortcuts ShortcutResolver, blocked *safety.BlockedRoots, emitter events.Emitter, clk clock.Clock, log *slog.Logger) *Engine {
	return &Engine{
		folders:   folders,
		fs:        fs,
		collector: collector,
		shortcuts: shortcuts,
		blocked:   blocked,
		emitter:   emitter,
		clock:     clk,
		log:       log,
	}
}

// session owns the mutable state of one discovery run: the anchor set,
// token set, artifact list, and scan budgets.
type session struct {
	*Engine
	anchors   *trust.Set
	tokens    []string
	validator *safety.Validator
	artifacts []*artifact.Artifact
	index     map[string]bool
	details   []string
}

// Discover runs the full discovery pipeline and returns the report along
// with the anchor set for the later phases.
func (e *Engine) Discover(d *app.Descriptor, snapshot *app.Snapshot) (*Report, *trust.Set, error) {
	s := &session{
		Engine:  e,
		anchors: trust.NewResolver(e.folders, e.fs).Resolve(d),
		index:   make(map[string]bool),
	}

	// Authoritative seeds enter unfiltered and may extend the anchors.
	seeds, err := e.collector.Seeds(d)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to collect seeds: %w", err)
	}
	for _, seed := range seeds {
		if seed.Reason.AnchorEligible() {
			s.anchors.Add(s.seedDirectory(seed), seed.Reason)
		}
		s.addSeed(seed)
	}

	// The anchor set is final from here on; heuristic finds never
	// extend it.
	s.tokens = s.anchors.Tokens()
	s.validator = safety.NewValidator(s.anchors, e.blocked)
	for _, a := range s.anchors.Anchors() {
		s.emit(events.TypeAnchorResolved, map[string]any{"path": a.Path, "reason": string(a.Reason)})
	}

	s.addSinglePaths(d)
	s.addProcessImageDirs(d, snapshot)

	if len(s.tokens) == 0 {
		s.detail("no authoritative source resolved; heuristic scanning disabled")
	} else {
		s.scanAnchoredScopes()
		s.scanShortcuts()
	}

	return &Report{
		Artifacts: s.artifacts,
		Details:   s.details,
		Anchors:   s.anchors.Anchors(),
		Tokens:    s.tokens,
	}, s.anchors, nil
}

// addSinglePaths proposes the descriptor's direct locations: the install
// root, the display icon's parent, and the computed package-family data
// directories.
func (s *session) addSinglePaths(d *app.Descriptor) {
	if loc := d.Registry.InstallLocation; loc != "" && winpath.IsAbs(loc) {
		s.addFilesystem(loc, artifact.Metadata{
			Reason:     artifact.ReasonInstallRoot,
			Confidence: artifact.ConfidenceAnchor,
		})
	}

	if icon := d.Registry.DisplayIcon; icon != "" {
		if i := strings.LastIndex(icon, ","); i > 0 {
			icon = icon[:i]
		}
		if winpath.IsAbs(icon) {
			s.addFilesystem(winpath.Dir(icon), artifact.Metadata{
				Reason:     artifact.ReasonDisplayIconLocation,
				Confidence: artifact.ConfidenceAnchor,
			})
		}
	}

	if pfn := d.PackageFamilyName; pfn != "" {
		s.addFilesystem(winpath.Join(s.folders.Packages, pfn), artifact.Metadata{
			Reason:     artifact.ReasonPackageFamilyData,
			Confidence: artifact.ConfidenceAnchor,
		})
		for _, a := range s.anchors.Anchors() {
			if a.Reason == artifact.ReasonWindowsAppsPayload {
				s.addFilesystem(a.Path, artifact.Metadata{
					Reason:     artifact.ReasonWindowsAppsPayload,
					Confidence: artifact.ConfidenceAnchor,
				})
			}
		}
	}
}

// addProcessImageDirs proposes the image directories of related
// processes, but only when the directory is already anchored: process
// matches never expand trust on their own.
func (s *session) addProcessImageDirs(d *app.Descriptor, snapshot *app.Snapshot) {
	if snapshot == nil {
		return
	}
	for _, p := range procsweep.FindRelated(d, snapshot, s.anchors) {
		if p.Path == "" {
			continue
		}
		dir := winpath.Dir(p.Path)
		anchor, ok := s.anchors.Covering(dir)
		if !ok {
			s.detail("ignoring process image dir %s: not under a trust anchor", dir)
			continue
		}
		s.addFilesystem(dir, artifact.Metadata{
			Reason:       artifact.ReasonProcessImage,
			SourceAnchor: anchor.Path,
			Confidence:   artifact.ConfidenceAnchor,
		})
	}
}

// scanAnchoredScopes runs the bounded heuristic scans: inside directories
// that are anchors or one segment below an anchor, within the known
// parent roots, a child directory is kept when any token is a substring
// of its name. Each parent root carries an independent budget.
func (s *session) scanAnchoredScopes() {
	budgets := map[string]*ScanBudget{
		s.folders.ProgramFiles:      NewScanBudget(5),
		s.folders.ProgramFilesX86:   NewScanBudget(5),
		s.folders.LocalAppData:      NewScanBudget(6),
		s.folders.RoamingAppData:    NewScanBudget(4),
		s.folders.LocalLow:          NewScanBudget(4),
		s.folders.StartMenuPrograms: NewScanBudget(4),
		s.folders.PackageCache:      NewScanBudget(4),
	}

	for _, root := range s.folders.ScanRoots() {
		budget := budgets[root]
		for _, dir := range s.scopesUnder(root) {
			s.scanScope(root, dir, budget)
			if budget.Remaining() == 0 {
				break
			}
		}
	}
}

// scopesUnder returns the directories to scan inside for one parent
// root: every anchor under the root plus each anchor's immediate child
// directories.
func (s *session) scopesUnder(root string) []string {
	var scopes []string
	for _, a := range s.anchors.Anchors() {
		if !winpath.HasPrefix(a.Path, root) {
			continue
		}
		scopes = append(scopes, a.Path)
		entries, err := s.fs.ReadDir(a.Path)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir {
				scopes = append(scopes, winpath.Join(a.Path, e.Name))
			}
		}
	}
	return scopes
}

// scanScope adds token-matching child directories of dir, charging the
// root's budget once per kept directory.
func (s *session) scanScope(root, dir string, budget *ScanBudget) {
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir || !s.tokenMatch(e.Name) {
			continue
		}
		path := winpath.Join(dir, e.Name)
		if s.index[artifactKey(artifact.Directory, path)] {
			// Already proposed; single-charge policy leaves the
			// budget alone.
			continue
		}
		if s.blocked.IsBlocked(path) {
			s.detail("skipping %s: under a protected system directory", path)
			continue
		}

		candidate := artifact.New(artifact.Directory, path, artifact.Metadata{
			Reason:       artifact.ReasonHeuristicScan,
			SourceAnchor: dir,
			Confidence:   artifact.ConfidenceHeuristic,
		})
		if verdict := s.validator.IsRemovalAllowed(candidate); !verdict.Allowed {
			s.detail("skipping %s: %s", path, verdict.Reason)
			continue
		}
		if !budget.Consume() {
			s.detail("scan budget exhausted for %s", root)
			return
		}
		s.keep(candidate)
	}
}

// scanShortcuts walks the start-menu trees for .lnk files matching a
// token by filename or target name. A shortcut and its target are kept
// only when the target's directory resolves under an anchor.
func (s *session) scanShortcuts() {
	kept := 0
	for _, root := range []string{s.folders.StartMenuPrograms, s.folders.UserStartMenuPrograms} {
		s.walkShortcuts(root, 0, &kept)
	}
}

func (s *session) walkShortcuts(dir string, depth int, kept *int) {
	if depth > 2 || *kept >= maxShortcutMatches {
		return
	}
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if *kept >= maxShortcutMatches {
			return
		}
		path := winpath.Join(dir, e.Name)
		if e.IsDir {
			s.walkShortcuts(path, depth+1, kept)
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name), ".lnk") {
			continue
		}
		s.considerShortcut(path, kept)
	}
}

func (s *session) considerShortcut(path string, kept *int) {
	nameMatch := s.tokenMatch(winpath.Base(path))
	target, err := s.shortcuts.ResolveTarget(path)
	if err != nil {
		if nameMatch {
			s.detail("could not resolve shortcut %s: %v", path, err)
		}
		return
	}
	if !nameMatch && !s.tokenMatch(winpath.Base(target)) {
		return
	}

	targetDir := winpath.Dir(target)
	anchor, ok := s.anchors.Covering(targetDir)
	if !ok {
		s.detail("skipping shortcut %s: target %s not under a trust anchor", path, target)
		return
	}
	if s.blocked.IsBlocked(path) || s.blocked.IsBlocked(target) {
		s.detail("skipping shortcut %s: protected location", path)
		return
	}

	meta := artifact.Metadata{
		Reason:       artifact.ReasonShortcutMatch,
		SourceAnchor: anchor.Path,
		Confidence:   artifact.ConfidenceHeuristic,
	}
	if s.keep(artifact.New(artifact.File, path, meta)) {
		*kept++
	}
	s.keep(artifact.New(artifact.File, target, meta))
}

// addSeed records an authoritative seed without any filtering.
func (s *session) addSeed(seed Seed) {
	meta := artifact.Metadata{Reason: seed.Reason, Confidence: artifact.ConfidenceAnchor}
	switch seed.Type {
	case artifact.Directory, artifact.File:
		s.addFilesystem(seed.Path, meta)
	default:
		s.keep(artifact.New(seed.Type, seed.Path, meta))
	}
}

// addFilesystem records a filesystem artifact, classifying file vs
// directory from disk and attaching sizes when the path exists.
func (s *session) addFilesystem(path string, meta artifact.Metadata) {
	typ := artifact.Directory
	if isDir, err := s.fs.IsDir(path); err == nil && !isDir {
		if exists, err := s.fs.Exists(path); err == nil && exists {
			typ = artifact.File
		}
	}
	s.keep(artifact.New(typ, path, meta))
}

// keep deduplicates by normalized path and records the artifact,
// reporting whether it was new.
func (s *session) keep(a *artifact.Artifact) bool {
	key := a.Key()
	if s.index[key] {
		return false
	}
	s.index[key] = true
	s.attachSize(a)
	s.artifacts = append(s.artifacts, a)
	s.emit(events.TypeArtifactDiscovered, map[string]any{
		"artifactId": a.ID,
		"type":       string(a.Type),
		"path":       a.Path,
		"reason":     string(a.Metadata.Reason),
		"confidence": string(a.Metadata.Confidence),
	})
	return true
}

func (s *session) attachSize(a *artifact.Artifact) {
	switch a.Type {
	case artifact.Directory:
		if size, err := s.fs.TreeSize(a.Path); err == nil {
			a.SizeBytes = size
		}
	case artifact.File:
		if size, err := s.fs.FileSize(a.Path); err == nil {
			a.SizeBytes = size
		}
	}
}

func (s *session) tokenMatch(name string) bool {
	lower := strings.ToLower(name)
	for _, tok := range s.tokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

func (s *session) seedDirectory(seed Seed) string {
	path := winpath.Normalize(seed.Path)
	if isDir, err := s.fs.IsDir(path); err == nil && isDir {
		return path
	}
	if exists, err := s.fs.Exists(path); err == nil && exists {
		return winpath.Dir(path)
	}
	return path
}

func (s *session) detail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.details = append(s.details, msg)
	s.log.Debug(msg)
}

func (s *session) emit(eventType string, payload map[string]any) {
	s.emitter.Emit(events.Event{Type: eventType, Timestamp: s.clock.Now(), Payload: payload})
}

func artifactKey(t artifact.Type, path string) string {
	return string(t) + "|" + strings.ToLower(winpath.Normalize(path))
}
