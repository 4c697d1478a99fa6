package sync

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/korrelate/ingestcore/internal/ingest"
	"github.com/korrelate/ingestcore/internal/model"
	"github.com/korrelate/ingestcore/internal/processing"
	"github.com/korrelate/ingestcore/internal/profile"
	"github.com/korrelate/ingestcore/utils"

	"github.com/google/uuid"
)

// BindingStore is the subset of the persistence collaborator bindings need.
type BindingStore interface {
	GetBinding(ctx context.Context, id string) (*model.RemoteFolderBinding, error)
	ReplaceBinding(ctx context.Context, b *model.RemoteFolderBinding) error
}

// DocumentStore is the subset of the persistence collaborator FolderSynchronizer needs.
type DocumentStore interface {
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	LookupByRemoteID(ctx context.Context, remoteID string) (*model.Document, error)
	LookupByHash(ctx context.Context, hash string) (*model.Document, error)
	InsertDocument(ctx context.Context, d *model.Document) error
	UpdateDocument(ctx context.Context, d *model.Document, prevUpdatedAt time.Time) error
	DeleteChunks(ctx context.Context, documentID string) error
	DocumentsByRemoteFolder(ctx context.Context, folderID string) ([]model.Document, error)
}

// EventEmitter is the subset of EventBus FolderSynchronizer announces through.
type EventEmitter interface {
	Emit(eventType model.EventType, payload interface{})
}

// FolderSynchronizer pulls files from a remote object store incrementally.
type FolderSynchronizer struct {
	bindings   BindingStore
	docs       DocumentStore
	resolver   *profile.Resolver
	sm         *processing.StateMachine
	dispatcher *processing.Dispatcher
	remote     RemoteClient
	bus        EventEmitter
	uploadDir  string

	mu      sync.Mutex
	running map[string]bool
}

func NewFolderSynchronizer(bindings BindingStore, docs DocumentStore, resolver *profile.Resolver, sm *processing.StateMachine, dispatcher *processing.Dispatcher, remote RemoteClient, bus EventEmitter, uploadDir string) *FolderSynchronizer {
	return &FolderSynchronizer{
		bindings:   bindings,
		docs:       docs,
		resolver:   resolver,
		sm:         sm,
		dispatcher: dispatcher,
		remote:     remote,
		bus:        bus,
		uploadDir:  uploadDir,
		running:    make(map[string]bool),
	}
}

// Sync runs one full or incremental pass for bindingID, per §4.11. Concurrent
// calls for the same binding are rejected immediately.
func (fs *FolderSynchronizer) Sync(ctx context.Context, bindingID string) (model.SyncResult, error) {
	if !fs.tryLock(bindingID) {
		return model.SyncResult{}, fmt.Errorf("sync already in progress for binding %s", bindingID)
	}
	defer fs.unlock(bindingID)

	binding, err := fs.bindings.GetBinding(ctx, bindingID)
	if err != nil {
		return model.SyncResult{}, err
	}
	if binding.SyncStatus == model.SyncRunning {
		return model.SyncResult{}, fmt.Errorf("sync already in progress for binding %s", bindingID)
	}

	binding.SyncStatus = model.SyncRunning
	binding.SyncError = ""
	if err := fs.bindings.ReplaceBinding(ctx, binding); err != nil {
		return model.SyncResult{}, err
	}
	fs.bus.Emit(model.EventSyncStart, map[string]interface{}{"bindingId": bindingID})

	prof, err := fs.resolver.Resolve(ctx, "", "", binding.ProfileID)
	if err != nil {
		return fs.fail(ctx, binding, err)
	}

	var result model.SyncResult
	var newToken string

	if binding.PageToken == "" {
		result, newToken, err = fs.fullSync(ctx, binding, prof)
	} else {
		result, newToken, err = fs.incrementalSync(ctx, binding, prof)
	}

	if err != nil {
		return fs.fail(ctx, binding, err)
	}

	binding.PageToken = newToken
	binding.SyncStatus = model.SyncIdle
	binding.SyncError = ""
	now := time.Now().UTC()
	binding.LastSyncedAt = &now
	if err := fs.bindings.ReplaceBinding(ctx, binding); err != nil {
		return model.SyncResult{}, err
	}
	fs.bus.Emit(model.EventSyncComplete, map[string]interface{}{"bindingId": bindingID, "result": result})
	return result, nil
}

func (fs *FolderSynchronizer) fail(ctx context.Context, binding *model.RemoteFolderBinding, cause error) (model.SyncResult, error) {
	binding.SyncStatus = model.SyncError
	binding.SyncError = cause.Error()
	// page token intentionally left untouched: the next run resumes from here.
	_ = fs.bindings.ReplaceBinding(ctx, binding)
	fs.bus.Emit(model.EventSyncError, map[string]interface{}{"bindingId": binding.ID, "error": cause.Error()})
	return model.SyncResult{}, cause
}

func (fs *FolderSynchronizer) fullSync(ctx context.Context, binding *model.RemoteFolderBinding, prof model.ProcessingProfile) (model.SyncResult, string, error) {
	files, newToken, err := fs.remote.ListFolder(ctx, binding.RemoteFolderID, binding.Recursive)
	if err != nil {
		return model.SyncResult{}, "", err
	}

	result := model.SyncResult{}
	seen := make(map[string]bool, len(files))
	for i, f := range files {
		seen[f.RemoteFileID] = true
		fs.handleFile(ctx, binding, f, prof, &result)
		if (i+1)%10 == 0 {
			fs.bus.Emit(model.EventSyncProgress, map[string]interface{}{"bindingId": binding.ID, "processed": i + 1, "total": len(files)})
		}
	}

	existing, err := fs.docs.DocumentsByRemoteFolder(ctx, binding.RemoteFolderID)
	if err != nil {
		return result, "", err
	}
	for _, d := range existing {
		if d.RemoteFileID == nil || seen[*d.RemoteFileID] {
			continue
		}
		fs.markRemoved(ctx, &d, &result)
	}

	return result, newToken, nil
}

func (fs *FolderSynchronizer) incrementalSync(ctx context.Context, binding *model.RemoteFolderBinding, prof model.ProcessingProfile) (model.SyncResult, string, error) {
	changes, newToken, err := fs.remote.ListChanges(ctx, binding.PageToken)
	if err != nil {
		return model.SyncResult{}, binding.PageToken, err
	}

	result := model.SyncResult{}
	for i, c := range changes {
		if c.Removed || c.File == nil {
			doc, lookupErr := fs.docs.LookupByRemoteID(ctx, c.RemoteFileID)
			if lookupErr == nil && doc != nil {
				fs.markRemoved(ctx, doc, &result)
			}
			continue
		}
		fs.handleFile(ctx, binding, *c.File, prof, &result)
		if (i+1)%10 == 0 {
			fs.bus.Emit(model.EventSyncProgress, map[string]interface{}{"bindingId": binding.ID, "processed": i + 1, "total": len(changes)})
		}
	}
	return result, newToken, nil
}

// handleFile implements the per-file handling in §4.11 steps 1-4.
func (fs *FolderSynchronizer) handleFile(ctx context.Context, binding *model.RemoteFolderBinding, f RemoteFile, prof model.ProcessingProfile, result *model.SyncResult) {
	existing, err := fs.docs.LookupByRemoteID(ctx, f.RemoteFileID)
	if err != nil {
		result.Errors = append(result.Errors, model.SyncFileError{RemoteFileID: f.RemoteFileID, Code: "LOOKUP_FAILED", Message: err.Error()})
		return
	}

	if existing != nil {
		if f.MD5 != "" && f.MD5 == existing.MD5Hash {
			// unchanged content: restore from a removal-induced failure only
			if existing.Status == model.StatusFailed && existing.FailReason != nil && *existing.FailReason == model.ErrRemovedFromRemote {
				_ = fs.sm.Transition(ctx, existing, model.StatusCompleted, processing.TransitionOpts{
					ChunkCount: existing.ChunkCount,
					Reason:     "sync-restore-unchanged",
				})
			}
			return
		}
		fs.reprocessExisting(ctx, existing, f, prof, result)
		return
	}

	fs.ingestNewRemoteFile(ctx, binding, f, prof, result)
}

// reprocessExisting covers step 3: hash differs (or file missing remotely
// under this remoteFileId, which ListChanges never reports as such, so this
// path is reached only on a genuine content change).
func (fs *FolderSynchronizer) reprocessExisting(ctx context.Context, doc *model.Document, f RemoteFile, prof model.ProcessingProfile, result *model.SyncResult) {
	content, localPath, err := fs.download(ctx, f)
	if err != nil {
		result.Errors = append(result.Errors, model.SyncFileError{RemoteFileID: f.RemoteFileID, Code: "DOWNLOAD_FAILED", Message: err.Error()})
		return
	}

	doc.FilePath = localPath
	doc.MD5Hash = utils.HashBytes(content)
	doc.FileSize = int64(len(content))
	doc.RemoteModifiedTime = parseTime(f.ModifiedTime)

	if err := fs.sm.Transition(ctx, doc, model.StatusPending, processing.TransitionOpts{Reason: "sync-reprocess"}); err != nil {
		result.Errors = append(result.Errors, model.SyncFileError{RemoteFileID: f.RemoteFileID, Code: "STATE_CONFLICT", Message: err.Error()})
		return
	}

	route, routeErr := ingest.Route(doc.Filename, "", doc.FileSize, prof.Conversion.MaxFileSizeMb)
	if routeErr != nil {
		result.Errors = append(result.Errors, model.SyncFileError{RemoteFileID: f.RemoteFileID, Code: "UNSUPPORTED_FORMAT", Message: routeErr.Error()})
		return
	}
	if err := fs.dispatcher.Dispatch(ctx, doc, content, route.Lane, prof); err != nil {
		result.Errors = append(result.Errors, model.SyncFileError{RemoteFileID: f.RemoteFileID, Code: "DISPATCH_FAILED", Message: err.Error()})
		return
	}
	result.Updated++
}

// ingestNewRemoteFile covers step 4: attach-by-hash or create-new.
func (fs *FolderSynchronizer) ingestNewRemoteFile(ctx context.Context, binding *model.RemoteFolderBinding, f RemoteFile, prof model.ProcessingProfile, result *model.SyncResult) {
	content, localPath, err := fs.download(ctx, f)
	if err != nil {
		result.Errors = append(result.Errors, model.SyncFileError{RemoteFileID: f.RemoteFileID, Code: "DOWNLOAD_FAILED", Message: err.Error()})
		return
	}
	hash := utils.HashBytes(content)

	if byHash, lookupErr := fs.docs.LookupByHash(ctx, hash); lookupErr == nil && byHash != nil {
		os.Remove(localPath)
		remoteFileID := f.RemoteFileID
		remoteFolderID := binding.RemoteFolderID
		byHash.RemoteFileID = &remoteFileID
		byHash.RemoteFolderID = &remoteFolderID
		byHash.SourceType = model.SourceRemote
		byHash.ConnectionState = model.ConnectionLinked
		byHash.RemoteModifiedTime = parseTime(f.ModifiedTime)
		if err := fs.docs.UpdateDocument(ctx, byHash, byHash.UpdatedAt); err != nil {
			result.Errors = append(result.Errors, model.SyncFileError{RemoteFileID: f.RemoteFileID, Code: "STATE_CONFLICT", Message: err.Error()})
		}
		return
	}

	route, routeErr := ingest.Route(f.Name, "", int64(len(content)), prof.Conversion.MaxFileSizeMb)
	if routeErr != nil {
		result.Errors = append(result.Errors, model.SyncFileError{RemoteFileID: f.RemoteFileID, Code: "UNSUPPORTED_FORMAT", Message: routeErr.Error()})
		os.Remove(localPath)
		return
	}

	remoteFileID := f.RemoteFileID
	remoteFolderID := binding.RemoteFolderID
	now := time.Now().UTC()
	doc := &model.Document{
		ID:                 uuid.NewString(),
		Filename:           f.Name,
		FileSize:           int64(len(content)),
		Format:             route.Format,
		FormatCategory:     route.Category,
		Status:             model.StatusPending,
		MD5Hash:            hash,
		FilePath:           localPath,
		IsActive:           true,
		SourceType:         model.SourceRemote,
		ConnectionState:    model.ConnectionLinked,
		RemoteFileID:       &remoteFileID,
		RemoteFolderID:     &remoteFolderID,
		RemoteModifiedTime: parseTime(f.ModifiedTime),
		ProfileID:          binding.ProfileID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := fs.docs.InsertDocument(ctx, doc); err != nil {
		result.Errors = append(result.Errors, model.SyncFileError{RemoteFileID: f.RemoteFileID, Code: "STATE_CONFLICT", Message: err.Error()})
		return
	}
	fs.bus.Emit(model.EventDocumentCreated, map[string]interface{}{"documentId": doc.ID, "sourceType": model.SourceRemote})

	if err := fs.dispatcher.Dispatch(ctx, doc, content, route.Lane, prof); err != nil {
		result.Errors = append(result.Errors, model.SyncFileError{RemoteFileID: f.RemoteFileID, Code: "DISPATCH_FAILED", Message: err.Error()})
		return
	}
	result.Added++
}

func (fs *FolderSynchronizer) markRemoved(ctx context.Context, doc *model.Document, result *model.SyncResult) {
	reason := model.ErrRemovedFromRemote
	if err := fs.sm.Transition(ctx, doc, model.StatusFailed, processing.TransitionOpts{FailReason: &reason, Reason: "sync-removed"}); err != nil {
		result.Errors = append(result.Errors, model.SyncFileError{Code: "STATE_CONFLICT", Message: err.Error()})
		return
	}
	result.Removed++
}

func (fs *FolderSynchronizer) download(ctx context.Context, f RemoteFile) (content []byte, localPath string, err error) {
	rc, err := fs.remote.Download(ctx, f.RemoteFileID)
	if err != nil {
		return nil, "", err
	}
	defer rc.Close()

	content, err = io.ReadAll(rc)
	if err != nil {
		return nil, "", err
	}

	name, err := utils.GenerateSecureRandomString(16)
	if err != nil {
		return nil, "", err
	}
	localPath = filepath.Join(fs.uploadDir, name+filepath.Ext(f.Name))
	if err := os.WriteFile(localPath, content, 0o600); err != nil {
		return nil, "", err
	}
	return content, localPath, nil
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

func (fs *FolderSynchronizer) tryLock(bindingID string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.running[bindingID] {
		return false
	}
	fs.running[bindingID] = true
	return true
}

func (fs *FolderSynchronizer) unlock(bindingID string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.running, bindingID)
}
