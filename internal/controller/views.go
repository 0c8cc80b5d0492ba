package controller

// Discard is a rendering adapter that ignores every update. It is used by
// controllers that serve plain HTTP requests and have no page to render.
var Discard discardView

type discardView struct{}

func (discardView) SetVisible(string, bool)             {}
func (discardView) SetScrollLocked(bool)                {}
func (discardView) Focus(string)                        {}
func (discardView) SetClass(string, string, bool)       {}
func (discardView) SetStyle(string, string, string)     {}
func (discardView) SetText(string, string)              {}
func (discardView) SetAttribute(string, string, string) {}
func (discardView) ShowFieldError(string, string)       {}
func (discardView) ClearFieldError(string)              {}
