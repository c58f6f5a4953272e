package api

import (
	"reflect"
	"testing"
)

func TestRenderedLanguagesAreSorted(t *testing.T) {
	objects := map[string]any{
		"tr": "certificates/1/tr.png",
		"en": "certificates/1/en.png",
		"fr": "certificates/1/fr.png",
		"de": "certificates/1/de.png",
	}
	want := []string{"de", "en", "fr", "tr"}

	// 多跑几轮，排除 map 迭代顺序碰巧有序的情况。
	for i := 0; i < 20; i++ {
		if got := renderedLanguages(objects); !reflect.DeepEqual(got, want) {
			t.Fatalf("languages = %v, want %v", got, want)
		}
	}

	if got := renderedLanguages(nil); got != nil {
		t.Fatalf("languages for empty objects = %v, want nil", got)
	}
}
