package i18n

import (
	"context"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "FeedbackTitle")
	if got != "C-test Grading Results" {
		t.Errorf("T(FeedbackTitle) = %q, want 'C-test Grading Results'", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	got := T(ctx, "FeedbackTitle")
	if got != "Результаты проверки C-теста" {
		t.Errorf("T(FeedbackTitle) = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "FeedbackCorrectCount", map[string]any{"Correct": 7, "Total": 8})
	if got != "Correct answers: 7/8" {
		t.Errorf("Td(FeedbackCorrectCount) = %q, want 'Correct answers: 7/8'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "ResultsSynced", 1)
	if got1 != "1 result synced." {
		t.Errorf("Tp(ResultsSynced, 1) = %q, want '1 result synced.'", got1)
	}

	got3 := Tp(ctx, "ResultsSynced", 3)
	if got3 != "3 results synced." {
		t.Errorf("Tp(ResultsSynced, 3) = %q, want '3 results synced.'", got3)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want the key itself", got)
	}
}
