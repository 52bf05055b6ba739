package storage

import (
	"context"
	"errors"
	"fmt"
	"hash"
	"log/slog"
	"strings"
	"sync"
	"time"

	"stowage/internal/domain"
	models "stowage/internal/domain/models/storage"
	storageRepo "stowage/internal/domain/repositories/storage"
	storageSvc "stowage/internal/domain/services/storage"
	"stowage/internal/issues"
	"stowage/internal/objectstore"

	"golang.org/x/sync/errgroup"
)

// VerifierConfig tunes the walk. Zero values fall back to defaults.
type VerifierConfig struct {
	// Concurrency bounds the folder and file checks in flight at once.
	Concurrency int

	// StorageTimeout applies to each object store call on its own.
	StorageTimeout time.Duration
}

const (
	defaultConcurrency    = 8
	defaultStorageTimeout = 30 * time.Second
)

type verifier struct {
	folderRepo  storageRepo.FolderRepository
	fileRepo    storageRepo.FileRepository
	projectRepo storageRepo.ProjectRepository
	store       objectstore.Store
	resolver    storageSvc.PathResolver
	catalog     *issues.Catalog
	cfg         VerifierConfig
	logger      *slog.Logger
}

// NewVerifier creates the integrity verifier
func NewVerifier(
	folderRepo storageRepo.FolderRepository,
	fileRepo storageRepo.FileRepository,
	projectRepo storageRepo.ProjectRepository,
	store objectstore.Store,
	resolver storageSvc.PathResolver,
	catalog *issues.Catalog,
	cfg VerifierConfig,
	logger *slog.Logger,
) storageSvc.Verifier {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.StorageTimeout <= 0 {
		cfg.StorageTimeout = defaultStorageTimeout
	}
	return &verifier{
		folderRepo:  folderRepo,
		fileRepo:    fileRepo,
		projectRepo: projectRepo,
		store:       store,
		resolver:    resolver,
		catalog:     catalog,
		cfg:         cfg,
		logger:      logger,
	}
}

// visit is a folder scheduled for a structure check, with the parent it was
// reached from. parentOK is false when the parent link is broken.
type visit struct {
	folder   *models.Folder
	parent   *models.Folder
	parentOK bool
}

// findings collects the issues raised by one item check.
type findings struct {
	errors   []models.Issue
	warnings []models.Issue
}

// run is the state of one verification.
type run struct {
	v      *verifier
	report *models.VerificationReport
	opts   models.VerificationOptions

	projectsMu sync.Mutex
	projects   map[string]*models.Project // nil value: missing or deleted

	folderValid map[string]bool
	fileValid   map[string]bool
}

// Verify walks the subtree of report.FolderID and fills report.Results. It
// returns an error only for infrastructure failures or cancellation; findings
// never fail the run.
func (v *verifier) Verify(ctx context.Context, report *models.VerificationReport) error {
	r := &run{
		v:           v,
		report:      report,
		opts:        report.Options,
		projects:    make(map[string]*models.Project),
		folderValid: make(map[string]bool),
		fileValid:   make(map[string]bool),
	}
	report.Results = models.VerificationResults{
		Errors:   []models.Issue{},
		Warnings: []models.Issue{},
		Repaired: []models.Repair{},
	}

	if err := r.walk(ctx); err != nil {
		return err
	}
	if err := r.orphanScan(ctx); err != nil {
		return err
	}

	r.finish()
	v.logger.Debug("folder subtree verified",
		"verification_id", report.VerificationID,
		"folder_id", report.FolderID,
		"total_folders", report.Results.TotalFolders,
		"total_files", report.Results.TotalFiles,
		"errors", len(report.Results.Errors),
		"integrity_score", report.Results.IntegrityScore,
	)
	return nil
}

func (r *run) walk(ctx context.Context) error {
	root, err := r.v.folderRepo.GetByID(ctx, r.report.FolderID)
	if errors.Is(err, domain.ErrNotFound) {
		r.folderVanished(r.report.FolderID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load folder %s: %w", r.report.FolderID, err)
	}
	r.report.ProjectID = root.ProjectID

	first := visit{folder: root, parentOK: true}
	if root.ParentID != nil {
		parent, err := r.v.folderRepo.GetByID(ctx, *root.ParentID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			first.parentOK = false
		case err != nil:
			return fmt.Errorf("load parent folder: %w", err)
		case parent.IsDeleted:
			first.parentOK = false
		default:
			first.parent = parent
		}
	}

	seen := map[string]bool{root.ID: true}
	level := []visit{first}
	refresh := false

	for len(level) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		if refresh {
			level, err = r.refreshLevel(ctx, level)
			if err != nil {
				return err
			}
		}
		refresh = true

		if err := r.checkLevel(ctx, level); err != nil {
			return err
		}

		ids := make([]string, len(level))
		byID := make(map[string]*models.Folder, len(level))
		for i, vis := range level {
			ids[i] = vis.folder.ID
			byID[vis.folder.ID] = vis.folder
		}
		if len(ids) == 0 {
			break
		}

		children, err := r.v.folderRepo.Find(ctx, storageRepo.FolderFilter{ParentIDs: ids, Deleted: storageRepo.Bool(false)})
		if err != nil {
			return fmt.Errorf("list subfolders: %w", err)
		}
		var next []visit
		for i := range children {
			child := &children[i]
			if seen[child.ID] {
				continue
			}
			seen[child.ID] = true
			next = append(next, visit{folder: child, parent: byID[*child.ParentID], parentOK: true})
		}
		level = next
	}
	return nil
}

// refreshLevel re-reads a level in one batch right before visiting it, so
// folders deleted since they were listed are reported and not descended into.
func (r *run) refreshLevel(ctx context.Context, level []visit) ([]visit, error) {
	ids := make([]string, len(level))
	for i, vis := range level {
		ids[i] = vis.folder.ID
	}

	current, err := r.v.folderRepo.Find(ctx, storageRepo.FolderFilter{IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("reload folders: %w", err)
	}
	byID := make(map[string]*models.Folder, len(current))
	for i := range current {
		byID[current[i].ID] = &current[i]
	}

	live := level[:0]
	for _, vis := range level {
		f, ok := byID[vis.folder.ID]
		if !ok || f.IsDeleted {
			r.folderVanished(vis.folder.ID)
			continue
		}
		vis.folder = f
		live = append(live, vis)
	}
	return live, nil
}

func (r *run) folderVanished(id string) {
	issue := r.v.catalog.New(models.IssueFolderNotFound, fmt.Sprintf("folder %s no longer exists", id))
	issue.FolderID = id
	r.report.Results.Errors = append(r.report.Results.Errors, issue)
	r.folderValid[id] = false
}

// checkLevel runs the folder checks of a level and the file checks of their
// direct files under one concurrency bound, then merges findings in a stable
// order.
func (r *run) checkLevel(ctx context.Context, level []visit) error {
	var files []models.File
	folders := make(map[string]*models.Folder, len(level))
	if r.opts.CheckFiles && len(level) > 0 {
		ids := make([]string, len(level))
		for i, vis := range level {
			ids[i] = vis.folder.ID
			folders[vis.folder.ID] = vis.folder
		}
		var err error
		files, err = r.v.fileRepo.Find(ctx, storageRepo.FileFilter{FolderIDs: ids, Deleted: storageRepo.Bool(false)})
		if err != nil {
			return fmt.Errorf("list files: %w", err)
		}
	}

	folderResults := make([]findings, len(level))
	fileResults := make([]findings, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.v.cfg.Concurrency)
	for i := range level {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := r.checkFolder(gctx, level[i])
			folderResults[i] = res
			return err
		})
	}
	for i := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := r.checkFile(gctx, &files[i], folders[*files[i].FolderID])
			fileResults[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, res := range folderResults {
		r.merge(res)
		r.folderValid[level[i].folder.ID] = len(res.errors) == 0
	}
	for i, res := range fileResults {
		r.merge(res)
		r.fileValid[files[i].ID] = len(res.errors) == 0
	}
	return nil
}

func (r *run) merge(res findings) {
	r.report.Results.Errors = append(r.report.Results.Errors, res.errors...)
	r.report.Results.Warnings = append(r.report.Results.Warnings, res.warnings...)
}

func (r *run) add(res *findings, issue models.Issue) {
	if r.v.catalog.IsWarning(issue.Type) {
		res.warnings = append(res.warnings, issue)
	} else {
		res.errors = append(res.errors, issue)
	}
}

func (r *run) folderIssue(t models.IssueType, f *models.Folder, message string) models.Issue {
	issue := r.v.catalog.New(t, message)
	issue.FolderID = f.ID
	return issue
}

func (r *run) fileIssue(t models.IssueType, f *models.File, message string) models.Issue {
	issue := r.v.catalog.New(t, message)
	issue.FileID = f.ID
	if f.FolderID != nil {
		issue.FolderID = *f.FolderID
	}
	return issue
}

// checkFolder is the structure and permission check of one folder.
func (r *run) checkFolder(ctx context.Context, vis visit) (findings, error) {
	var res findings
	f := vis.folder

	if !vis.parentOK {
		issue := r.folderIssue(models.IssueOrphanedFolder, f, fmt.Sprintf("parent folder of %q is missing or deleted", f.Name))
		issue.Field = "parent_id"
		issue.Actual = *f.ParentID
		r.add(&res, issue)
	}

	project, err := r.project(ctx, f.ProjectID)
	if err != nil {
		return res, err
	}
	if project == nil {
		issue := r.folderIssue(models.IssueInvalidProject, f, fmt.Sprintf("project %s is missing or deleted", f.ProjectID))
		issue.Field = "project_id"
		issue.Actual = f.ProjectID
		r.add(&res, issue)
	}

	// Expected values are derived from the parent as stored. With a broken
	// parent link there is nothing to derive them from.
	if vis.parentOK {
		expected, err := r.v.resolver.Resolve(f.Name, vis.parent, unlimitedDepth)
		if err != nil {
			return res, err
		}
		switch {
		case f.Path != expected.Path:
			issue := r.folderIssue(models.IssuePathMismatch, f, fmt.Sprintf("path of %q does not match its location", f.Name))
			issue.Field = "path"
			issue.Expected, issue.Actual = expected.Path, f.Path
			r.add(&res, issue)
		case f.FullPath != expected.FullPath:
			issue := r.folderIssue(models.IssuePathMismatch, f, fmt.Sprintf("full path of %q does not match its location", f.Name))
			issue.Field = "full_path"
			issue.Expected, issue.Actual = expected.FullPath, f.FullPath
			r.add(&res, issue)
		}
		if f.Depth != expected.Depth {
			issue := r.folderIssue(models.IssueLevelMismatch, f, fmt.Sprintf("depth of %q does not match its location", f.Name))
			issue.Field = "depth"
			issue.Expected, issue.Actual = expected.Depth, f.Depth
			r.add(&res, issue)
		}
	}

	if r.opts.CheckPermissions {
		if f.OwnerID != r.report.OwnerID {
			issue := r.folderIssue(models.IssueOwnershipMismatch, f, fmt.Sprintf("folder %q belongs to another owner", f.Name))
			issue.Field = "owner_id"
			issue.Expected, issue.Actual = r.report.OwnerID, f.OwnerID
			r.add(&res, issue)
		}
		if project != nil && project.OwnerID != r.report.OwnerID {
			issue := r.folderIssue(models.IssueProjectPermissionWarning, f, fmt.Sprintf("project %s is owned by another user", project.ID))
			issue.Field = "project_owner_id"
			issue.Expected, issue.Actual = r.report.OwnerID, project.OwnerID
			r.add(&res, issue)
		}
	}

	return res, nil
}

// project returns the live project or nil, caching lookups for the run.
func (r *run) project(ctx context.Context, id string) (*models.Project, error) {
	r.projectsMu.Lock()
	defer r.projectsMu.Unlock()

	if p, ok := r.projects[id]; ok {
		return p, nil
	}
	p, err := r.v.projectRepo.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		r.projects[id] = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", id, err)
	}
	if p.IsDeleted {
		p = nil
	}
	r.projects[id] = p
	return p, nil
}

// checkFile runs the metadata, storage and permission checks of one file.
func (r *run) checkFile(ctx context.Context, f *models.File, folder *models.Folder) (findings, error) {
	var res findings

	if r.opts.CheckMetadata {
		switch {
		case f.Name == "":
			issue := r.fileIssue(models.IssueMissingMetadata, f, "file has no name")
			issue.Field = "name"
			r.add(&res, issue)
		case f.DisplayName == "":
			issue := r.fileIssue(models.IssueMissingMetadata, f, fmt.Sprintf("file %q has no display name", f.Name))
			issue.Field = "display_name"
			r.add(&res, issue)
		}
	}
	if folder != nil && f.ProjectID != folder.ProjectID {
		issue := r.fileIssue(models.IssueProjectMismatch, f, fmt.Sprintf("file %q is in a folder of another project", f.Name))
		issue.Field = "project_id"
		issue.Expected, issue.Actual = folder.ProjectID, f.ProjectID
		r.add(&res, issue)
	}
	if r.opts.CheckPermissions && f.OwnerID != r.report.OwnerID {
		issue := r.fileIssue(models.IssueOwnershipMismatch, f, fmt.Sprintf("file %q belongs to another owner", f.Name))
		issue.Field = "owner_id"
		issue.Expected, issue.Actual = r.report.OwnerID, f.OwnerID
		r.add(&res, issue)
	}

	if f.StorageKey == "" {
		issue := r.fileIssue(models.IssueMissingStorageKey, f, fmt.Sprintf("file %q has no storage key", f.Name))
		issue.Field = "storage_key"
		r.add(&res, issue)
		return res, nil
	}

	if r.opts.CheckStorage {
		info, err := r.head(ctx, f.StorageKey)
		if err != nil {
			return res, fmt.Errorf("head object %s: %w", f.StorageKey, err)
		}
		if !info.Exists {
			r.add(&res, r.missingObject(f))
			return res, nil
		}
		if info.Size != f.Size {
			issue := r.fileIssue(models.IssueSizeMismatch, f, fmt.Sprintf("stored object of %q has a different size", f.Name))
			issue.Field = "size"
			issue.Expected, issue.Actual = f.Size, info.Size
			r.add(&res, issue)
		}
	}

	if r.opts.DeepScan {
		newHash, ok := hasherFor(f.Checksum)
		if !ok {
			issue := r.fileIssue(models.IssueMissingMetadata, f, fmt.Sprintf("file %q has no usable checksum to scan against", f.Name))
			issue.Field = "checksum"
			r.add(&res, issue)
			return res, nil
		}
		sum, found, err := r.digest(ctx, f.StorageKey, newHash)
		if err != nil {
			return res, fmt.Errorf("read object %s: %w", f.StorageKey, err)
		}
		if !found {
			r.add(&res, r.missingObject(f))
			return res, nil
		}
		if !strings.EqualFold(sum, f.Checksum) {
			issue := r.fileIssue(models.IssueChecksumMismatch, f, fmt.Sprintf("content of %q does not match its checksum", f.Name))
			issue.Field = "checksum"
			issue.Expected, issue.Actual = strings.ToLower(f.Checksum), sum
			r.add(&res, issue)
		}
	}

	return res, nil
}

func (r *run) missingObject(f *models.File) models.Issue {
	issue := r.fileIssue(models.IssueStorageFileMissing, f, fmt.Sprintf("no stored object for %q", f.Name))
	issue.Field = "storage_key"
	issue.Actual = f.StorageKey
	return issue
}

// storageContext bounds one object store call. It is detached from run
// cancellation so a download that already started is not cut off; the run
// stops at the next folder visit instead.
func (r *run) storageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), r.v.cfg.StorageTimeout)
}

func (r *run) head(ctx context.Context, key string) (objectstore.ObjectInfo, error) {
	callCtx, cancel := r.storageContext(ctx)
	defer cancel()
	return r.v.store.HeadObject(callCtx, key)
}

func (r *run) digest(ctx context.Context, key string, newHash func() hash.Hash) (string, bool, error) {
	callCtx, cancel := r.storageContext(ctx)
	defer cancel()

	rc, err := r.v.store.GetObject(callCtx, key)
	if errors.Is(err, objectstore.ErrObjectNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	defer rc.Close()

	sum, err := hashStream(rc, newHash)
	if err != nil {
		return "", true, err
	}
	return sum, true, nil
}

// orphanScan is one pass over the live files of the project that reference a
// folder, flagging those whose folder is missing or deleted.
func (r *run) orphanScan(ctx context.Context) error {
	if r.report.ProjectID == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	files, err := r.v.fileRepo.Find(ctx, storageRepo.FileFilter{
		ProjectID: r.report.ProjectID,
		HasFolder: true,
		Deleted:   storageRepo.Bool(false),
	})
	if err != nil {
		return fmt.Errorf("list project files: %w", err)
	}
	if len(files) == 0 {
		return nil
	}

	var ids []string
	seen := make(map[string]bool)
	for _, f := range files {
		if !seen[*f.FolderID] {
			seen[*f.FolderID] = true
			ids = append(ids, *f.FolderID)
		}
	}
	folders, err := r.v.folderRepo.Find(ctx, storageRepo.FolderFilter{IDs: ids})
	if err != nil {
		return fmt.Errorf("load referenced folders: %w", err)
	}
	live := make(map[string]bool, len(folders))
	for _, f := range folders {
		live[f.ID] = !f.IsDeleted
	}

	for i := range files {
		f := &files[i]
		if live[*f.FolderID] {
			continue
		}
		issue := r.fileIssue(models.IssueOrphanedFile, f, fmt.Sprintf("file %q references a missing or deleted folder", f.Name))
		issue.Field = "folder_id"
		issue.Actual = *f.FolderID
		r.report.Results.Errors = append(r.report.Results.Errors, issue)
		r.fileValid[f.ID] = false
	}
	return nil
}

func (r *run) finish() {
	results := &r.report.Results
	results.TotalFolders = len(r.folderValid)
	results.TotalFiles = len(r.fileValid)
	for _, ok := range r.folderValid {
		if ok {
			results.ValidFolders++
		}
	}
	for _, ok := range r.fileValid {
		if ok {
			results.ValidFiles++
		}
	}
	results.IntegrityScore = r.v.catalog.Score(
		results.ValidFolders+results.ValidFiles,
		results.TotalFolders+results.TotalFiles,
		results.Errors,
	)
}
