package project

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const handoverTemplate = `# %s - HANDOVER

## Current State
- Project initialization complete
- Created: %s

## Completed Tasks
- [ ] Project setup

## In Progress
- None

## Next Steps
- Design project structure
- Implement core features

## Notes
- This file helps the assistant understand project state
- Update when tasks are completed
`

const constitutionTemplate = `# %s - CONSTITUTION

## Project Principles
1. Code quality first
2. Maintain test coverage
3. Documentation required

## Tech Stack
- (Specify technologies here)

## Coding Conventions
- (Specify coding rules here)

## Prohibited
- Hardcoded secrets
- Deployment without tests

## Reference Documents
- README.md
- HANDOVER.md
`

// seedGovernanceTemplates writes starter HANDOVER.md and CONSTITUTION.md
// into the project working tree. Existing documents are left alone so
// importing a live project never clobbers its state.
func seedGovernanceTemplates(projectPath, projectName string) error {
	if err := os.MkdirAll(projectPath, 0o755); err != nil {
		return fmt.Errorf("create project path: %w", err)
	}

	handoverPath := filepath.Join(projectPath, "HANDOVER.md")
	if _, err := os.Stat(handoverPath); os.IsNotExist(err) {
		content := fmt.Sprintf(handoverTemplate, projectName, time.Now().Format("2006-01-02"))
		if err := os.WriteFile(handoverPath, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write HANDOVER.md: %w", err)
		}
	}

	constitutionPath := filepath.Join(projectPath, "CONSTITUTION.md")
	if _, err := os.Stat(constitutionPath); os.IsNotExist(err) {
		content := fmt.Sprintf(constitutionTemplate, projectName)
		if err := os.WriteFile(constitutionPath, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write CONSTITUTION.md: %w", err)
		}
	}

	return nil
}
