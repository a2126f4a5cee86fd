package judge_client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEvaluate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != SubmissionsEndpoint {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var sub Submission
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			t.Errorf("decode submission: %v", err)
		}
		_ = json.NewEncoder(w).Encode(Verdict{
			Passed: sub.ExpectedOutput == "42",
			Stdout: "42\n",
			Time:   0.01,
			Memory: 1024,
		})
	}))
	defer srv.Close()

	v, err := NewJudgeClient(srv.URL, "").Evaluate(context.Background(), Submission{
		Language:       "python",
		Code:           "print(42)",
		ExpectedOutput: "42",
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !v.Passed || v.Stdout != "42\n" {
		t.Fatalf("unexpected verdict %+v", v)
	}
}

func TestEvaluateUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	if _, err := NewJudgeClient(url, "").Evaluate(context.Background(), Submission{}); err == nil {
		t.Fatal("expected error for unreachable judge")
	}
}
