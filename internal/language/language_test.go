package language

import "testing"

func TestResolve_ConcretePreferencePassesThrough(t *testing.T) {
	if got := Resolve("fr", "朝のルーティン"); got != "fr" {
		t.Errorf("Expected fr, got %s", got)
	}
}

func TestDetectTag(t *testing.T) {
	cases := []struct {
		name  string
		topic string
		want  string
	}{
		{"latin", "Morning Routine", "en"},
		{"hiragana", "あさのしゅうかん", "ja"},
		{"kanji with kana", "朝の習慣づくり", "ja"},
		{"han only", "晨间习惯", "zh"},
		{"hangul", "아침 루틴", "ko"},
		{"cyrillic", "Утренние привычки", "ru"},
		{"mixed latin and kana", "Morning ルーティン", "ja"},
		{"empty", "", "en"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectTag(tc.topic); got != tc.want {
				t.Errorf("DetectTag(%q) = %s, want %s", tc.topic, got, tc.want)
			}
		})
	}
}

func TestResolve_AutoUsesDetection(t *testing.T) {
	if got := Resolve(Auto, "朝のルーティン"); got != "ja" {
		t.Errorf("Expected ja, got %s", got)
	}
	if got := Resolve("", "Morning Routine"); got != "en" {
		t.Errorf("Expected en, got %s", got)
	}
}
