package controllers

import (
	"net/http"

	"storefront-api/store"
	"storefront-api/utils"
)

// HealthController reports whether the store answers
type HealthController struct {
	Base
	Store store.Pinger
}

func (hc *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := hc.ctx(r)
	defer cancel()

	if err := hc.Store.Ping(ctx); err != nil {
		body := utils.Response{Success: false, Message: "Store unreachable"}
		if hc.Dev {
			body.Error = err.Error()
		}
		utils.WriteJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	utils.Success(w, http.StatusOK, "", map[string]string{"status": "ok"})
}
