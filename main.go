package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"steelrain/sim/internal/ai"
	"steelrain/sim/internal/config"
	"steelrain/sim/internal/events"
	"steelrain/sim/internal/logging"
	"steelrain/sim/internal/replay"
	"steelrain/sim/internal/session"
	"steelrain/sim/internal/simulation"
	"steelrain/sim/internal/tank"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is a connected spectator with its buffered outbound queue.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	id   string
}

// Hub fans battlefield updates out to every connected spectator.
type Hub struct {
	clients map[*Client]bool
	lock    sync.Mutex
	log     *logging.Logger
}

func NewHub(log *logging.Logger) *Hub {
	return &Hub{clients: make(map[*Client]bool), log: log}
}

func (h *Hub) broadcast(msg []byte) {
	h.lock.Lock()
	defer h.lock.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			//1.- A spectator that cannot keep up is dropped, not waited on.
			close(c.send)
			delete(h.clients, c)
		}
	}
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", logging.Error(err))
		return
	}
	client := &Client{conn: conn, send: make(chan []byte, 256), id: r.RemoteAddr}
	h.lock.Lock()
	h.clients[client] = true
	h.lock.Unlock()
	h.log.Info("spectator connected", logging.String("remote", client.id))

	//1.- Spectators never send gameplay input; the read loop only detects
	// disconnects and pong traffic.
	go func() {
		defer func() {
			h.lock.Lock()
			delete(h.clients, client)
			h.lock.Unlock()
			client.conn.Close()
			h.log.Info("spectator disconnected", logging.String("remote", client.id))
		}()
		for {
			if _, _, err := client.conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	//2.- The write loop drains the send queue and keeps the socket alive.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer func() {
			ticker.Stop()
			client.conn.Close()
		}()
		for {
			select {
			case msg, ok := <-client.send:
				if !ok {
					_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			case <-ticker.C:
				if err := client.conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
					return
				}
			}
		}
	}()
}

// tankDiffMessage is the incremental battlefield frame sent to spectators.
type tankDiffMessage struct {
	Type    string        `json:"type"`
	Updated []*tank.State `json:"updated,omitempty"`
	Removed []string      `json:"removed,omitempty"`
}

// eventMessage wraps a gameplay event envelope for spectators.
type eventMessage struct {
	Type     string           `json:"type"`
	Envelope *events.Envelope `json:"envelope"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "simcore:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialise logging: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	//1.- Every random draw in the match flows from one seeded source so a
	// seeded run replays identically.
	seed := time.Now().UnixNano()
	if cfg.TerrainSeed != nil {
		seed = *cfg.TerrainSeed
	}
	rng := rand.New(rand.NewSource(seed))

	sess, err := session.NewSession(
		session.WithCapacity(session.Capacity{MinTanks: 2, MaxTanks: cfg.TankCount}),
		session.WithStartingBalance(cfg.StartingBalance),
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	stream := events.NewStream(events.Config{})

	journal, _, err := replay.NewJournal(cfg.ReplayDir, sess.ID(), nil)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	journal.SetHeaderMetadata(fmt.Sprintf("%d", seed), cfg.Rounds, cfg.Difficulty, replay.TerrainParameters{
		"width":     float64(cfg.ArenaWidth),
		"height":    float64(cfg.ArenaHeight),
		"roughness": cfg.Roughness,
	})
	defer journal.Close()

	sweeper := replay.NewSweeper(cfg.ReplayDir, replay.RetentionPolicy{MaxBundles: cfg.ReplayRetention}, log)
	go sweeper.Run(ctx, time.Hour)

	engine := ai.NewEngine(rng, log)
	match, err := simulation.NewMatch(cfg, sess, stream, journal, engine, rng, log)
	if err != nil {
		return fmt.Errorf("create match: %w", err)
	}

	//2.- Spectator transport: battlefield diffs on a fixed cadence plus the
	// complete gameplay event feed.
	hub := NewHub(log)
	loop := simulation.NewLoop(cfg.TickInterval, func(time.Duration) {
		diff := match.Tanks().ConsumeDiff()
		if len(diff.Updated) == 0 && len(diff.Removed) == 0 {
			return
		}
		payload, err := json.Marshal(tankDiffMessage{Type: "tank_diff", Updated: diff.Updated, Removed: diff.Removed})
		if err != nil {
			log.Warn("diff encode failed", logging.Error(err))
			return
		}
		hub.broadcast(payload)
	})
	loop.Start(ctx)
	defer loop.Stop()

	sub, err := stream.Subscribe(ctx, "spectator-feed", 512)
	if err != nil {
		return fmt.Errorf("subscribe spectators: %w", err)
	}
	defer sub.Close()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case env, ok := <-sub.Events():
				if !ok {
					return
				}
				payload, err := json.Marshal(eventMessage{Type: "event", Envelope: env})
				if err != nil {
					log.Warn("event encode failed", logging.Error(err))
					continue
				}
				hub.broadcast(payload)
				if err := sub.Ack(env.Sequence); err != nil {
					log.Warn("event ack failed", logging.Error(err))
				}
			}
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.serveWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	server := &http.Server{Addr: cfg.SpectatorAddr, Handler: mux}
	serverErr := make(chan error, 1)
	go func() {
		log.Info("spectator feed listening", logging.String("addr", cfg.SpectatorAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	//3.- The match plays on its own goroutine while the main goroutine
	// supervises shutdown signals and server failures.
	matchDone := make(chan error, 1)
	go func() {
		winner, err := match.Run()
		if err == nil {
			log.Info("match complete", logging.String("winner", winner))
		}
		matchDone <- err
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case err := <-serverErr:
		return fmt.Errorf("spectator server: %w", err)
	case err := <-matchDone:
		if err != nil {
			return fmt.Errorf("match: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown failed", logging.Error(err))
	}
	return nil
}
