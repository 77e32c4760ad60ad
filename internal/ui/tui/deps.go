package tui

import (
	"log/slog"

	"github.com/getodk/briefcase-sub006/internal/domain"
)

type Deps struct {
	// Title heads the view, e.g. "Pull from Central server ...".
	Title string
	Forms []domain.FormMetadata

	// Cancel stops the running transfer. It is called at most once.
	Cancel func()

	Logger *slog.Logger
}
