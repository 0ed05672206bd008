package picker

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"storageverifier/internal/locator"
)

type intentState int

const (
	statePending intentState = iota
	stateCompleted
	stateAbandoned
)

type pendingIntent struct {
	intent Intent
	done   chan Completion
	state  intentState
}

// Broker is the Launcher used in production. It publishes intents over
// HTTP for the automation driving the picker UI, and accepts one
// completion per intent:
//
//	GET  /intents       pending intents
//	GET  /intents/{id}  one intent
//	POST /intents/{id}  {"result":"ok"|"canceled","uri":"content://..."}
type Broker struct {
	mu      sync.Mutex
	intents map[string]*pendingIntent
	order   []string
	router  chi.Router
	log     logrus.FieldLogger
}

func NewBroker(log logrus.FieldLogger) *Broker {
	b := &Broker{
		intents: make(map[string]*pendingIntent),
		log:     log,
	}
	r := chi.NewRouter()
	r.Get("/intents", b.handleList)
	r.Get("/intents/{id}", b.handleGet)
	r.Post("/intents/{id}", b.handleComplete)
	b.router = r
	return b
}

func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.router.ServeHTTP(w, r)
}

// Launch publishes intent until it is completed or ctx ends.
func (b *Broker) Launch(ctx context.Context, intent Intent) (<-chan Completion, error) {
	p := &pendingIntent{intent: intent, done: make(chan Completion, 1)}

	b.mu.Lock()
	b.intents[intent.ID] = p
	b.order = append(b.order, intent.ID)
	b.mu.Unlock()

	b.log.WithFields(logrus.Fields{
		"id":      intent.ID,
		"action":  intent.Action,
		"initial": intent.InitialURI,
		"title":   intent.Title,
	}).Info("picker intent launched")

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		if p.state == statePending {
			p.state = stateAbandoned
			b.log.WithField("id", intent.ID).Warn("picker intent abandoned")
		}
	}()

	return p.done, nil
}

// Pending returns the intents still waiting for a completion, oldest first.
func (b *Broker) Pending() []Intent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Intent, 0, len(b.order))
	for _, id := range b.order {
		if p := b.intents[id]; p.state == statePending {
			out = append(out, p.intent)
		}
	}
	return out
}

type completionRequest struct {
	Result string `json:"result"`
	URI    string `json:"uri"`
}

func (b *Broker) handleList(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(b.Pending())
}

func (b *Broker) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b.mu.Lock()
	p, ok := b.intents[id]
	var intent Intent
	if ok {
		intent = p.intent
	}
	b.mu.Unlock()
	if !ok {
		http.Error(w, "Unknown intent", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(intent)
}

func (b *Broker) handleComplete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	var req completionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var c Completion
	switch req.Result {
	case "ok":
		c = Completion{OK: true, URI: locator.Locator(req.URI)}
	case "canceled", "cancelled":
		c = Completion{}
	default:
		http.Error(w, `result must be "ok" or "canceled"`, http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	p, ok := b.intents[id]
	if !ok {
		b.mu.Unlock()
		http.Error(w, "Unknown intent", http.StatusNotFound)
		return
	}
	if p.state != statePending {
		b.mu.Unlock()
		http.Error(w, "Intent already completed", http.StatusConflict)
		return
	}
	p.state = stateCompleted
	p.done <- c
	b.mu.Unlock()

	b.log.WithFields(logrus.Fields{"id": id, "ok": c.OK, "uri": c.URI}).Info("picker intent completed")
	w.WriteHeader(http.StatusNoContent)
}
