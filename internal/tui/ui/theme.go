package ui

import (
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"
)

// Theme holds the palette every widget draws with.
type Theme struct {
	BgColor           tcell.Color
	FgColor           tcell.Color
	BorderColor       tcell.Color
	BorderFocusColor  tcell.Color
	TableHeaderFg     tcell.Color
	TableHeaderBg     tcell.Color
	TableCursorFg     tcell.Color
	TableCursorBg     tcell.Color
	CrumbActiveFg     tcell.Color
	CrumbActiveBg     tcell.Color
	CrumbInactiveFg   tcell.Color
	CrumbInactiveBg   tcell.Color
	MenuKeyColor      tcell.Color
	NumericKeyColor   tcell.Color
	TitleColor        tcell.Color
	CounterColor      tcell.Color
	FlashInfoColor    tcell.Color
	FlashWarnColor    tcell.Color
	FlashErrColor     tcell.Color
	PromptBorderColor tcell.Color

	OwnMessageColor tcell.Color
	FailedColor     tcell.Color
	SystemColor     tcell.Color
	TypingColor     tcell.Color
	OnlineColor     tcell.Color
	ToastBorder     tcell.Color
}

// DefaultTheme is a dark palette with green chat accents.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:           tcell.ColorBlack,
		FgColor:           tcell.ColorSilver,
		BorderColor:       tcell.ColorSeaGreen,
		BorderFocusColor:  tcell.ColorMediumSpringGreen,
		TableHeaderFg:     tcell.ColorWhite,
		TableHeaderBg:     tcell.ColorBlack,
		TableCursorFg:     tcell.ColorBlack,
		TableCursorBg:     tcell.ColorMediumSeaGreen,
		CrumbActiveFg:     tcell.ColorBlack,
		CrumbActiveBg:     tcell.ColorGold,
		CrumbInactiveFg:   tcell.ColorBlack,
		CrumbInactiveBg:   tcell.ColorDarkSeaGreen,
		MenuKeyColor:      tcell.ColorMediumSeaGreen,
		NumericKeyColor:   tcell.ColorGold,
		TitleColor:        tcell.ColorSpringGreen,
		CounterColor:      tcell.ColorWheat,
		FlashInfoColor:    tcell.ColorLightGreen,
		FlashWarnColor:    tcell.ColorGold,
		FlashErrColor:     tcell.ColorTomato,
		PromptBorderColor: tcell.ColorMediumSeaGreen,
		OwnMessageColor:   tcell.ColorLightSkyBlue,
		FailedColor:       tcell.ColorTomato,
		SystemColor:       tcell.ColorGoldenrod,
		TypingColor:       tcell.ColorDarkGray,
		OnlineColor:       tcell.ColorLimeGreen,
		ToastBorder:       tcell.ColorSpringGreen,
	}
}

var (
	tagMu    sync.Mutex
	tagCache = map[tcell.Color]string{}
)

// Tag returns the name tview style tags use for c.
func Tag(c tcell.Color) string {
	tagMu.Lock()
	defer tagMu.Unlock()
	if name, ok := tagCache[c]; ok {
		return name
	}
	name := fmt.Sprintf("#%06x", c.Hex())
	for n, v := range tcell.ColorNames {
		if v == c {
			name = n
			break
		}
	}
	tagCache[c] = name
	return name
}
