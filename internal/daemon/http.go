package daemon

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/perfmgr/boostd/internal/boost"
	"github.com/perfmgr/boostd/internal/pool"
)

func (d *Daemon) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	r.Route("/debug", func(r chi.Router) {
		r.Post("/input", d.handleInput)
		r.Post("/kick/{kind}", d.handleKick)
		r.Post("/display/{state}", d.handleDisplay)
		r.Post("/sound/{state}", d.handleSound)
		r.Post("/reclaim", d.handleReclaim)
		r.Get("/reclaimable", d.handleReclaimable)
	})

	return r
}

func (d *Daemon) handleInput(w http.ResponseWriter, _ *http.Request) {
	d.input.Activity()
	w.WriteHeader(http.StatusAccepted)
}

func (d *Daemon) handleKick(w http.ResponseWriter, r *http.Request) {
	var kind boost.DeviceKind
	switch chi.URLParam(r, "kind") {
	case boost.DeviceCPUBandwidth.String():
		kind = boost.DeviceCPUBandwidth
	case boost.DeviceLLCBandwidth.String():
		kind = boost.DeviceLLCBandwidth
	default:
		http.Error(w, "unknown device kind", http.StatusNotFound)
		return
	}

	max := r.URL.Query().Get("max") == "true"
	d.controller.Kick(kind, max)
	w.WriteHeader(http.StatusAccepted)
}

func (d *Daemon) handleDisplay(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "state") {
	case "on":
		d.display.Blank(false)
	case "off":
		d.display.Blank(true)
	default:
		http.Error(w, "state must be on or off", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (d *Daemon) handleSound(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "state") {
	case "on":
		d.powerSaver.SoundEnabled()
	case "off":
		d.powerSaver.SoundDisabled()
	default:
		http.Error(w, "state must be on or off", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (d *Daemon) handleReclaim(w http.ResponseWriter, r *http.Request) {
	budget, err := strconv.Atoi(r.URL.Query().Get("budget"))
	if err != nil || budget <= 0 {
		http.Error(w, "budget must be a positive integer", http.StatusBadRequest)
		return
	}

	rc := pool.ReclaimContext{Reclaimer: true}
	freed := d.shrinker.Reclaim(rc, budget)
	fmt.Fprintf(w, "%d\n", freed)
}

func (d *Daemon) handleReclaimable(w http.ResponseWriter, r *http.Request) {
	rc := pool.ReclaimContext{
		Reclaimer: r.URL.Query().Get("privileged") == "true",
		Highmem:   r.URL.Query().Get("highmem") == "true",
	}
	fmt.Fprintf(w, "%d\n", d.shrinker.Count(rc))
}
