package api

import (
	"github.com/stanford201807/TW-Pulse-CLI-sub000/internal/domain/models"
	xhttp "github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/http"
)

func init() {
	xhttp.MustRegisterRule("sapta_status", func(s string) bool {
		_, err := models.ParseStatus(s)
		return err == nil
	}, "must be one of PRE-MARKUP, SIAP, WATCHLIST, ABAIKAN")
}
