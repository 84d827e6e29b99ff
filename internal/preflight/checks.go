package preflight

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/rsmidt/ptyhost/internal/models"
)

// CheckAll probes for the shells runs are spawned with. The returned
// bool is false when the required shell is missing from PATH.
func CheckAll() ([]models.ShellStatus, bool) {
	required := "sh"
	optional := []string{"bash", "zsh"}
	if runtime.GOOS == "windows" {
		required = "cmd"
		optional = []string{"powershell"}
	}

	shells := []models.ShellStatus{checkShell(required)}
	for _, name := range optional {
		shells = append(shells, checkShell(name))
	}

	ok := shells[0].Installed
	if !ok {
		fmt.Printf("⚠ %s is not installed. Commands cannot be spawned without it.\n", required)
	}
	for _, sh := range shells[1:] {
		if sh.Installed {
			fmt.Printf("✓ %s found (%s)\n", sh.Name, sh.Path)
		}
	}

	return shells, ok
}

func checkShell(name string) models.ShellStatus {
	path, err := exec.LookPath(name)
	if err != nil {
		return models.ShellStatus{Name: name, Installed: false}
	}
	return models.ShellStatus{Name: name, Installed: true, Path: path}
}
