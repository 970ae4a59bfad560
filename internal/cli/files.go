package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"taskpanel/internal/api"
	"taskpanel/internal/panel"
)

func parseFileArgs(args []string) (panel.Folder, string, error) {
	folder, err := panel.ParseFolder(args[0])
	if err != nil {
		return "", "", err
	}
	name := strings.TrimSpace(args[1])
	if name == "" {
		return "", "", panel.ErrNoFile
	}
	return folder, name, nil
}

func newFilesCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "files",
		Aliases: []string{"file"},
		Short:   "Browse and edit files in the script folders",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list [downloads|autokey]",
			Short: "List a folder",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				folder := e.ctrl.State().CurrentFolder
				if len(args) == 1 {
					f, err := panel.ParseFolder(args[0])
					if err != nil {
						return err
					}
					folder = f
				}
				files, err := e.ctrl.SwitchFolder(e.ctx(cmd), folder)
				if err != nil {
					return e.result(err)
				}
				writeFiles(e.rt.Out, folder, files, e.loc)
				return nil
			},
		},
		&cobra.Command{
			Use:   "cat <folder> <name>",
			Short: "Print a file",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				folder, name, err := parseFileArgs(args)
				if err != nil {
					return err
				}
				ed, err := e.ctrl.OpenFile(e.ctx(cmd), folder, name)
				if err != nil {
					return e.result(err)
				}
				fmt.Fprint(e.rt.Out, ed.Content)
				if ed.Content != "" && !strings.HasSuffix(ed.Content, "\n") {
					fmt.Fprintln(e.rt.Out)
				}
				return nil
			},
		},
		newFileSaveCommand(e),
		newFileEditCommand(e),
		&cobra.Command{
			Use:     "delete <folder> <name>",
			Aliases: []string{"rm"},
			Short:   "Delete a file (asks first)",
			Args:    cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				folder, name, err := parseFileArgs(args)
				if err != nil {
					return err
				}
				if err := e.ctrl.DeleteFile(e.ctx(cmd), folder, name); err != nil {
					return e.result(err)
				}
				fmt.Fprintf(e.rt.Out, "Deleted %s/%s\n", folder, name)
				return nil
			},
		},
	)
	return cmd
}

func newFileSaveCommand(e *env) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "save <folder> <name>",
		Short: "Save content from a local file or stdin",
		Long: `Save content from a local file (--from) or stdin. Names without
a .py or .side suffix are saved as .py.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder, name, err := parseFileArgs(args)
			if err != nil {
				return err
			}
			var content []byte
			if from == "" || from == "-" {
				content, err = io.ReadAll(e.rt.In)
			} else {
				content, err = os.ReadFile(from)
			}
			if err != nil {
				return fmt.Errorf("read content: %w", err)
			}
			return e.result(e.ctrl.SaveFile(e.ctx(cmd), folder, name, string(content)))
		},
	}
	cmd.Flags().StringVarP(&from, "from", "f", "", "local file to upload (default stdin)")
	return cmd
}

// newFileEditCommand opens the file in $EDITOR and saves it when the editor
// exits with changed content. A missing file starts empty.
func newFileEditCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <folder> <name>",
		Short: "Edit a file in $EDITOR",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder, name, err := parseFileArgs(args)
			if err != nil {
				return err
			}
			ctx := e.ctx(cmd)
			content, err := e.ctrl.ReadFile(ctx, folder, name)
			if err != nil && api.StatusOf(err) != http.StatusNotFound {
				return fmt.Errorf("open %s/%s: %w", folder, name, err)
			}

			edited, changed, err := editText(ctx, e.rt.Editor, panel.NormalizeFilename(name), content)
			if err != nil {
				return err
			}
			if !changed {
				fmt.Fprintln(e.rt.Out, "No changes.")
				return nil
			}
			return e.result(e.ctrl.SaveFile(ctx, folder, name, edited))
		},
	}
}

// editText round-trips content through a temp file named like the remote
// file so the editor picks the right syntax.
func editText(ctx context.Context, open func(context.Context, string) error, name, content string) (string, bool, error) {
	dir, err := os.MkdirTemp("", "panelctl-")
	if err != nil {
		return "", false, err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", false, err
	}
	if err := open(ctx, path); err != nil {
		return "", false, fmt.Errorf("editor: %w", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", false, err
	}
	return string(b), string(b) != content, nil
}

// runEditor starts $VISUAL, then $EDITOR, then vi, attached to the
// terminal.
func runEditor(ctx context.Context, path string) error {
	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return errors.New("no editor configured")
	}
	c := exec.CommandContext(ctx, parts[0], append(parts[1:], path)...)
	c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
	return c.Run()
}
