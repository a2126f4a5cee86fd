package orchestrator

import (
	"fmt"
	"strings"

	"github.com/mcdev12/sabotage/go/clients/generator_client"
	"github.com/mcdev12/sabotage/go/clients/judge_client"
	"github.com/mcdev12/sabotage/go/internal/models"
)

// Canned content used whenever the generation service fails.

var cannedTasks = map[string]generator_client.GeneratedTask{
	"arrays": {
		Prompt:         "Print the sum of the list [3, 1, 4, 1, 5].",
		StarterCode:    "nums = [3, 1, 4, 1, 5]\n",
		ExpectedOutput: "14",
	},
	"strings": {
		Prompt:         "Print the word \"station\" reversed.",
		StarterCode:    "word = \"station\"\n",
		ExpectedOutput: "noitats",
	},
	"loops": {
		Prompt:         "Print the product of the numbers 1 through 5.",
		StarterCode:    "result = 1\n",
		ExpectedOutput: "120",
	},
	"recursion": {
		Prompt:         "Print the 10th Fibonacci number, where fib(1) = fib(2) = 1.",
		StarterCode:    "def fib(n):\n    pass\n",
		ExpectedOutput: "55",
	},
	"hash maps": {
		Prompt:         "Print how many distinct letters appear in \"sabotage\".",
		StarterCode:    "text = \"sabotage\"\n",
		ExpectedOutput: "7",
	},
}

var defaultCannedTask = generator_client.GeneratedTask{
	Prompt:         "Print the number of characters in \"workers\".",
	StarterCode:    "s = \"workers\"\n",
	ExpectedOutput: "7",
}

var cannedPuzzle = generator_client.GeneratedTask{
	Prompt:         "Print the largest value in [7, 42, 13, 8].",
	StarterCode:    "values = [7, 42, 13, 8]\n",
	ExpectedOutput: "42",
}

func fallbackTask(topic string) generator_client.GeneratedTask {
	if t, ok := cannedTasks[topic]; ok {
		return t
	}
	return defaultCannedTask
}

func fallbackPuzzle() generator_client.GeneratedTask {
	return cannedPuzzle
}

// verdictPassed accepts either the judge's own verdict or an exact match
// of trimmed output.
func verdictPassed(v judge_client.Verdict, expected string) bool {
	if v.Passed {
		return true
	}
	want := strings.TrimSpace(expected)
	return want != "" && strings.TrimSpace(v.Stdout) == want
}

// fallbackJudge is used when the judge is unreachable.
func fallbackJudge(code, expected string) bool {
	want := strings.TrimSpace(expected)
	return want != "" && strings.Contains(code, want)
}

// fallbackReport formats an attempt summary locally.
func fallbackReport(name string, role models.Role, attempts []models.Attempt) string {
	passed := 0
	stations := map[string]bool{}
	for _, a := range attempts {
		if a.Passed {
			passed++
		}
		stations[a.StationID] = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s played as %s.\n", name, role)
	if len(attempts) == 0 {
		b.WriteString("No code was submitted this game.")
		return b.String()
	}
	fmt.Fprintf(&b, "Submitted %d attempts across %d stations, %d passed.", len(attempts), len(stations), passed)
	if passed < len(attempts) {
		b.WriteString(" Re-read the expected output carefully before submitting.")
	}
	return b.String()
}
