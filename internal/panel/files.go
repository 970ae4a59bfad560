package panel

import (
	"context"

	"taskpanel/internal/api"
)

const (
	MsgFileSaved         = "File saved"
	MsgConfirmDeleteFile = "Delete this file?"
)

// SwitchFolder makes folder current and replaces the listing with that
// folder's files. Other folders are not fetched.
func (c *Controller) SwitchFolder(ctx context.Context, folder Folder) ([]api.ScriptFile, error) {
	c.state.CurrentFolder = folder
	c.state.Files = nil
	return c.ListFiles(ctx, folder)
}

// ListFiles fetches one folder. The stored listing is replaced only when
// folder is the current one.
func (c *Controller) ListFiles(ctx context.Context, folder Folder) ([]api.ScriptFile, error) {
	var out []api.ScriptFile
	err := c.call(ctx, ActionFileList, string(folder), func(ctx context.Context) (err error) {
		out, err = c.backend.ListFiles(ctx, string(folder))
		return err
	})
	if err != nil {
		c.alert.Alert(ctx, alertText("Load files failed", err))
		return nil, err
	}
	if folder == c.state.CurrentFolder {
		c.state.Files = out
	}
	return out, nil
}

func (c *Controller) ReadFile(ctx context.Context, folder Folder, name string) (string, error) {
	var content string
	err := c.call(ctx, ActionFileRead, fileTarget(folder, name), func(ctx context.Context) (err error) {
		content, err = c.backend.ReadFile(ctx, string(folder), name)
		return err
	})
	return content, err
}

// OpenFile loads a file into the editor session.
func (c *Controller) OpenFile(ctx context.Context, folder Folder, name string) (EditorSession, error) {
	content, err := c.ReadFile(ctx, folder, name)
	if err != nil {
		c.alert.Alert(ctx, alertText("Open failed", err))
		return EditorSession{}, err
	}
	c.state.Editor = EditorSession{Folder: folder, Filename: name, Content: content}
	c.state.EditorOpen = true
	return c.state.Editor, nil
}

// OpenNewFile opens an empty editor in the current folder.
func (c *Controller) OpenNewFile() EditorSession {
	c.state.Editor = EditorSession{Folder: c.state.CurrentFolder, IsNew: true}
	c.state.EditorOpen = true
	return c.state.Editor
}

func (c *Controller) CloseEditor() {
	c.state.EditorOpen = false
	c.state.Editor = EditorSession{}
}

// SaveEditor saves the open editor session under name with content, then
// closes the editor and re-lists the current folder.
func (c *Controller) SaveEditor(ctx context.Context, name, content string) error {
	folder := c.state.Editor.Folder
	if !c.state.EditorOpen || folder == "" {
		folder = c.state.CurrentFolder
	}
	return c.SaveFile(ctx, folder, name, content)
}

// SaveFile normalizes the filename, saves, closes the editor and re-lists
// the current folder.
func (c *Controller) SaveFile(ctx context.Context, folder Folder, name, content string) error {
	name = NormalizeFilename(name)
	if name == "" {
		c.alert.Alert(ctx, ErrNoFile.Error())
		return ErrNoFile
	}
	err := c.call(ctx, ActionFileSave, fileTarget(folder, name), func(ctx context.Context) error {
		return c.backend.SaveFile(ctx, string(folder), name, content)
	})
	if err != nil {
		c.alert.Alert(ctx, alertText("Save failed", err))
		return err
	}
	c.CloseEditor()
	c.alert.Alert(ctx, MsgFileSaved)
	_, _ = c.ListFiles(ctx, c.state.CurrentFolder)
	return nil
}

// DeleteFile asks first; a declined confirmation sends nothing.
func (c *Controller) DeleteFile(ctx context.Context, folder Folder, name string) error {
	ok, err := c.confirm.Confirm(ctx, MsgConfirmDeleteFile)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCancelled
	}
	err = c.call(ctx, ActionFileDelete, fileTarget(folder, name), func(ctx context.Context) error {
		return c.backend.DeleteFile(ctx, string(folder), name)
	})
	if err != nil {
		c.alert.Alert(ctx, alertText("Delete failed", err))
		return err
	}
	_, _ = c.ListFiles(ctx, c.state.CurrentFolder)
	return nil
}
