package natsadapter

import (
	"testing"

	"github.com/CHRISCARLON/infra-hex/internal/core/domain"
)

func TestSubjectFor(t *testing.T) {
	ok := &domain.SummaryRun{Mode: domain.ModeBBox}
	if got := SubjectFor(ok); got != "infrahex.summary.completed" {
		t.Errorf("expected completed subject, got %s", got)
	}
	failed := &domain.SummaryRun{Mode: domain.ModeArea, ErrorKind: "not_found"}
	if got := SubjectFor(failed); got != "infrahex.summary.failed" {
		t.Errorf("expected failed subject, got %s", got)
	}
}
