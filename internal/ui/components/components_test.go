// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"
	"time"

	"github.com/muesli/termenv"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/core"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/model"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/ui/styles"
)

func testTheme() *styles.Theme {
	return styles.NewThemeWithProfile(termenv.Ascii, true)
}

func TestRenderToasts_Empty(t *testing.T) {
	if got := RenderToasts(testTheme(), nil, 80); got != "" {
		t.Errorf("RenderToasts(nil) = %q", got)
	}
	if ToastHeight("") != 0 {
		t.Error("empty toast height")
	}
}

func TestRenderToasts_CapsVisible(t *testing.T) {
	var notices []core.NoticeView
	for i := 0; i < 5; i++ {
		notices = append(notices, core.NoticeView{
			ID:   string(rune('a' + i)),
			Text: "Could not save notes for AC-" + string(rune('1'+i)),
			At:   time.Now(),
		})
	}
	got := RenderToasts(testTheme(), notices, 80)
	if strings.Contains(got, "AC-1") || strings.Contains(got, "AC-2") {
		t.Errorf("oldest notices should be hidden:\n%s", got)
	}
	if !strings.Contains(got, "AC-5") || !strings.Contains(got, "2 more notices") {
		t.Errorf("unexpected stack:\n%s", got)
	}
	if ToastHeight(got) < MaxVisibleToasts {
		t.Errorf("height = %d", ToastHeight(got))
	}
}

func TestStatusBar(t *testing.T) {
	bar := StatusBar{
		Mode:      model.ModeAssisted,
		Page:      "controls",
		Streaming: true,
		Spinner:   "|",
		Saving:    2,
		Hint:      "? help",
	}
	got := bar.Render(testTheme(), 120)
	for _, want := range []string{"Assistant", "page: controls", "answering", "saving 2 items", "? help"} {
		if !strings.Contains(got, want) {
			t.Errorf("status bar missing %q: %q", want, got)
		}
	}
}
