// Package sync implements FolderSynchronizer: pulling files from a remote,
// Google-Drive-style object store incrementally.
package sync

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// RemoteFile is one entry in a remote folder listing or change stream.
type RemoteFile struct {
	RemoteFileID string
	Name         string
	MD5          string
	ModifiedTime string
}

// RemoteChange is one entry in an incremental change stream.
type RemoteChange struct {
	RemoteFileID string
	Removed      bool
	File         *RemoteFile
}

// RemoteClient is the object-store collaborator FolderSynchronizer drives.
// Both Google Drive and any future backend satisfy this same interface.
type RemoteClient interface {
	ListFolder(ctx context.Context, folderID string, recursive bool) ([]RemoteFile, string, error)
	ListChanges(ctx context.Context, pageToken string) ([]RemoteChange, string, error)
	Download(ctx context.Context, remoteFileID string) (io.ReadCloser, error)
}

// DriveClient is the reference RemoteClient, backed by Google Drive's v3 API.
type DriveClient struct {
	svc *drive.Service
}

func NewDriveClient(ctx context.Context, oauthToken string) (*DriveClient, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: oauthToken})
	svc, err := drive.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create drive client: %w", err)
	}
	return &DriveClient{svc: svc}, nil
}

// ListFolder performs a full listing. When recursive, it walks subfolders
// breadth-first, and returns a change-stream cursor established at the end
// of the walk so the next sync can go incremental.
func (d *DriveClient) ListFolder(ctx context.Context, folderID string, recursive bool) ([]RemoteFile, string, error) {
	var files []RemoteFile
	queue := []string{folderID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		pageToken := ""
		for {
			call := d.svc.Files.List().
				Context(ctx).
				Q(fmt.Sprintf("'%s' in parents and trashed = false", current)).
				Fields("nextPageToken, files(id, name, md5Checksum, mimeType, modifiedTime)")
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			resp, err := call.Do()
			if err != nil {
				return nil, "", err
			}
			for _, f := range resp.Files {
				if f.MimeType == "application/vnd.google-apps.folder" {
					if recursive {
						queue = append(queue, f.Id)
					}
					continue
				}
				files = append(files, RemoteFile{
					RemoteFileID: f.Id,
					Name:         f.Name,
					MD5:          f.Md5Checksum,
					ModifiedTime: f.ModifiedTime,
				})
			}
			if resp.NextPageToken == "" {
				break
			}
			pageToken = resp.NextPageToken
		}
	}

	startToken, err := d.svc.Changes.GetStartPageToken().Context(ctx).Do()
	if err != nil {
		return files, "", err
	}
	return files, startToken.StartPageToken, nil
}

// ListChanges iterates the change stream from pageToken, returning the next cursor.
func (d *DriveClient) ListChanges(ctx context.Context, pageToken string) ([]RemoteChange, string, error) {
	var changes []RemoteChange
	token := pageToken

	for {
		call := d.svc.Changes.List(token).Context(ctx).
			Fields("newStartPageToken, nextPageToken, changes(fileId, removed, file(id, name, md5Checksum, mimeType, modifiedTime))")
		resp, err := call.Do()
		if err != nil {
			return nil, pageToken, err
		}
		for _, c := range resp.Changes {
			rc := RemoteChange{RemoteFileID: c.FileId, Removed: c.Removed}
			if !c.Removed && c.File != nil && c.File.MimeType != "application/vnd.google-apps.folder" {
				rc.File = &RemoteFile{
					RemoteFileID: c.File.Id,
					Name:         c.File.Name,
					MD5:          c.File.Md5Checksum,
					ModifiedTime: c.File.ModifiedTime,
				}
			}
			changes = append(changes, rc)
		}
		if resp.NewStartPageToken != "" {
			return changes, resp.NewStartPageToken, nil
		}
		token = resp.NextPageToken
	}
}

func (d *DriveClient) Download(ctx context.Context, remoteFileID string) (io.ReadCloser, error) {
	resp, err := d.svc.Files.Get(remoteFileID).Context(ctx).Download()
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
