package panel

import "taskpanel/internal/api"

const (
	TitleAddTask  = "Add task"
	TitleEditTask = "Edit task"
)

// State mirrors what the browser page kept in the DOM and page globals.
type State struct {
	// CurrentTaskID is 0 while the modal is adding a new task.
	CurrentTaskID int64
	CurrentFolder Folder

	TaskModalOpen  bool
	TaskModalTitle string
	Form           TaskForm

	// Files is the listing of CurrentFolder as last fetched.
	Files []api.ScriptFile

	EditorOpen bool
	Editor     EditorSession
}

// EditorSession is the file currently open in the code editor. Content is
// never kept after the editor closes.
type EditorSession struct {
	Folder   Folder
	Filename string
	Content  string
	IsNew    bool
}
