package domain

import (
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorCode
	}{
		{nil, ""},
		{FormatError{Reason: "bad"}, CodeFormat},
		{DuplicateCodeError{Kind: EntityWidget, Code: "w1"}, CodeDuplicateCode},
		{ConflictError{Kind: EntityGroup, Code: "g1", NewCode: "g2"}, CodeConflict},
		{NotFoundError{Kind: EntityGroup, Code: "g1"}, CodeNotFound},
		{InvalidCodeError{Kind: EntityWidget, Reason: "empty"}, CodeInvalidCode},
		{fmt.Errorf("load: %w", NotFoundError{Kind: EntityWidget, Code: "w1"}), CodeNotFound},
		{fmt.Errorf("plain"), CodeUnknown},
	}
	for _, tc := range cases {
		if got := CodeOf(tc.err); got != tc.want {
			t.Fatalf("CodeOf(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestErrorMessagesNameTheEntity(t *testing.T) {
	err := NotFoundError{Kind: EntityGroup, Code: "g1", Relation: RelationGroupWidgets, Child: "w1"}
	if got := err.Error(); got != `group "g1" has no groupWidgets entry for "w1"` {
		t.Fatalf("unexpected message %q", got)
	}
	if got := (ConflictError{Kind: EntityWidget, Code: "w1", NewCode: "w2"}).Error(); got != `cannot rename widget "w1" to "w2": code already in use` {
		t.Fatalf("unexpected message %q", got)
	}
}
