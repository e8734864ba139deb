// Package metrics exposes Prometheus counters for the bot's user-facing
// features. Label sets are small fixed enums so cardinality stays bounded.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	// AutoresponderFired counts messages answered by a rule.
	AutoresponderFired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_autoresponder_fired_total",
		Help: "Messages answered by an autoresponder rule.",
	})

	// TicketsOpened counts ticket channels created.
	TicketsOpened = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_tickets_opened_total",
		Help: "Ticket channels created.",
	})

	// TicketsClosed counts closes by transcript outcome ("ok", "failed").
	TicketsClosed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_tickets_closed_total",
		Help: "Tickets closed, by transcript outcome.",
	}, []string{"transcript"})

	// TicketActions counts staff actions by action name.
	TicketActions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_ticket_actions_total",
		Help: "Staff ticket actions performed.",
	}, []string{"action"})

	// WaitlistTransitions counts status changes by target status.
	WaitlistTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_waitlist_transitions_total",
		Help: "Waitlist status transitions, by new status.",
	}, []string{"status"})

	// HandlerPanics counts panics recovered in event handlers.
	HandlerPanics = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_handler_panics_total",
		Help: "Panics recovered at the handler boundary.",
	})
)

func init() {
	prometheus.MustRegister(AutoresponderFired, TicketsOpened, TicketsClosed, TicketActions, WaitlistTransitions, HandlerPanics)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve listens on addr until ctx is cancelled. An empty addr disables the
// listener.
func Serve(ctx context.Context, addr string, log *zap.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("metrics listener stopped", zap.Error(err))
	}
}
