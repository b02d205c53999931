package catalog

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateQuestions(t *testing.T) {
	validOptions := []OptionInput{
		{OptionLetter: "a", OptionText: "first", IsCorrect: true},
		{OptionLetter: "b", OptionText: "second"},
		{OptionLetter: "c", OptionText: "third"},
	}

	cases := []struct {
		name      string
		questions []QuestionInput
		wantErr   string
	}{
		{
			name:      "empty set",
			questions: nil,
			wantErr:   "at least one question",
		},
		{
			name: "valid",
			questions: []QuestionInput{
				{QuestionText: "What is 2+2?", Options: validOptions},
			},
		},
		{
			name: "blank question text",
			questions: []QuestionInput{
				{QuestionText: "  ", Options: validOptions},
			},
			wantErr: "question text is required",
		},
		{
			name: "single option",
			questions: []QuestionInput{
				{QuestionText: "Pick one", Options: validOptions[:1]},
			},
			wantErr: "at least two options",
		},
		{
			name: "no correct option",
			questions: []QuestionInput{
				{QuestionText: "Pick one", Options: []OptionInput{
					{OptionLetter: "a", OptionText: "first"},
					{OptionLetter: "b", OptionText: "second"},
				}},
			},
			wantErr: "exactly one correct option is required, got 0",
		},
		{
			name: "two correct options",
			questions: []QuestionInput{
				{QuestionText: "Pick one", Options: []OptionInput{
					{OptionLetter: "a", OptionText: "first", IsCorrect: true},
					{OptionLetter: "b", OptionText: "second", IsCorrect: true},
				}},
			},
			wantErr: "exactly one correct option is required, got 2",
		},
		{
			name: "duplicate letters normalize case",
			questions: []QuestionInput{
				{QuestionText: "Pick one", Options: []OptionInput{
					{OptionLetter: "a", OptionText: "first", IsCorrect: true},
					{OptionLetter: "A", OptionText: "second"},
				}},
			},
			wantErr: "duplicate option letter",
		},
		{
			name: "second question reports its own position",
			questions: []QuestionInput{
				{QuestionText: "Fine", Options: validOptions},
				{QuestionText: "Broken", Options: validOptions[:1]},
			},
			wantErr: "question 2:",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateQuestions(tc.questions)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not contain %q", err.Error(), tc.wantErr)
			}
		})
	}
}

func TestValidationErrorCarriesRow(t *testing.T) {
	err := validateQuestions([]QuestionInput{
		{QuestionText: "Fine", Options: []OptionInput{
			{OptionLetter: "a", OptionText: "first", IsCorrect: true},
			{OptionLetter: "b", OptionText: "second"},
		}},
		{QuestionText: ""},
	})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if vErr.Row != 2 {
		t.Fatalf("expected row 2, got %d", vErr.Row)
	}
}
