package agent

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// outcomeSignature computes a deterministic signature for one tool
// invocation (name + hash of arguments).
func outcomeSignature(name string, args map[string]any) string {
	raw, _ := json.Marshal(args)
	h := sha256.Sum256(raw)
	return fmt.Sprintf("%s:%x", name, h[:8])
}

// DetectRepeat reports whether the last windowSize tool invocations follow
// a repeating pattern of length 1, 2, or 3. A looping model re-issues the
// same call or short cycle; burning the remaining iterations on it helps
// nobody.
func DetectRepeat(outcomes []ToolOutcome, windowSize int) bool {
	if len(outcomes) < windowSize {
		return false
	}

	sigs := make([]string, 0, windowSize)
	for _, o := range outcomes[len(outcomes)-windowSize:] {
		sigs = append(sigs, outcomeSignature(o.Tool, o.Args))
	}

	for patternLen := 1; patternLen <= 3; patternLen++ {
		if windowSize%patternLen != 0 {
			continue
		}
		pattern := sigs[:patternLen]
		allMatch := true
		for i := patternLen; i < windowSize && allMatch; i += patternLen {
			for j := 0; j < patternLen; j++ {
				if sigs[i+j] != pattern[j] {
					allMatch = false
					break
				}
			}
		}
		if allMatch {
			return true
		}
	}

	return false
}
