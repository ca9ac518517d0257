package command

import (
	"os"
	"os/exec"
	"strings"
)

// DefaultEditor is used when neither VISUAL nor EDITOR is set.
const DefaultEditor = "nano"

// EditorArgv returns the command line that opens path interactively. As
// root it runs $VISUAL, $EDITOR or nano directly; otherwise it uses
// "sudo -e", which edits a copy with the user's editor and installs it.
func EditorArgv(path string, root bool, sudoPath string, getenv func(string) string) []string {
	if !root {
		return []string{sudoPath, "-e", path}
	}
	editor := []string{DefaultEditor}
	for _, key := range []string{"VISUAL", "EDITOR"} {
		if v := strings.Fields(getenv(key)); len(v) > 0 {
			editor = v
			break
		}
	}
	return append(editor, path)
}

// EditorCommand returns an unstarted command that opens path in an editor.
// The caller attaches the terminal.
func (r *ExecRunner) EditorCommand(path string) *exec.Cmd {
	argv := EditorArgv(path, r.root.IsRoot(), r.cfg.SudoPath, os.Getenv)
	return exec.Command(argv[0], argv[1:]...)
}
