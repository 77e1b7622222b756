// Package main provides the matching venue server.
//
// Architecture Overview:
//
//	┌──────────┐   ┌────────────┐   ┌─────────────┐   ┌────────────┐
//	│ TCP/SHM  │──▶│  Session   │──▶│  Market Bus │──▶│ Coordinator│
//	│ upstream │   │  Channel   │   │ (ServerOrder)│   │            │
//	└──────────┘   └─────┬──────┘   └─────────────┘   └─────┬──────┘
//	                     │ (pre-auth: system bus)             │ per-ticker
//	                     ▼                                    ▼
//	              ┌─────────────┐                      ┌─────────────┐
//	              │Authenticator│                      │ Worker pool │
//	              └─────────────┘                      │  OrderBook  │
//	                                                    └─────┬──────┘
//	┌──────────┐   ┌────────────┐   ┌─────────────┐           │ match
//	│ TCP/SHM  │◀──│  Session   │◀──│ Session Mgr │◀──────────┘
//	│downstream│   │  Channel   │   │(OrderStatus)│
//	└──────────┘   └────────────┘   └─────────────┘
//
//	┌──────────┐   ┌────────────┐   ┌─────────────┐
//	│ UDP/SHM  │◀──│ Broadcast  │◀──│ Price Feed  │
//	│broadcast │   │  Channel   │   │(TickerPrice)│
//	└──────────┘   └────────────┘   └─────────────┘
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rishavpaul-system-design/matching-venue/internal/auth"
	"github.com/rishavpaul-system-design/matching-venue/internal/bus"
	"github.com/rishavpaul-system-design/matching-venue/internal/config"
	"github.com/rishavpaul-system-design/matching-venue/internal/control"
	"github.com/rishavpaul-system-design/matching-venue/internal/coordinator"
	"github.com/rishavpaul-system-design/matching-venue/internal/framing"
	"github.com/rishavpaul-system-design/matching-venue/internal/logging"
	"github.com/rishavpaul-system-design/matching-venue/internal/orderbook"
	"github.com/rishavpaul-system-design/matching-venue/internal/pricefeed"
	"github.com/rishavpaul-system-design/matching-venue/internal/session"
	"github.com/rishavpaul-system-design/matching-venue/internal/transport"
	"github.com/rishavpaul-system-design/matching-venue/internal/types"
	"github.com/rishavpaul-system-design/matching-venue/internal/workerpool"
)

func main() {
	configPath := flag.String("config", "server.ini", "path to the venue's INI config file")
	symbolList := flag.String("symbols", "AAPL,GOOGL,MSFT,AMZN,TSLA", "comma-separated tradeable tickers")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger, level, err := logging.New(cfg.Log.Level, cfg.Log.Output)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	srv, err := newServer(cfg, symbolsFrom(*symbolList), log, level)
	if err != nil {
		log.Fatalw("failed to build server", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv.Start(ctx)
	log.Infow("server operational", "sessions", srv.sessionManager.SessionCount())

	go runControlPlane(srv, log, level)

	<-ctx.Done()
	log.Info("shutdown signal received")
	srv.Shutdown()
}

func symbolsFrom(raw string) []string {
	out := []string{}
	cur := ""
	for _, r := range raw {
		if r == ',' {
			if cur != "" {
				out = append(out, cur)
			}
			cur = ""
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

// server bundles every long-lived component started by main. It
// exists so Shutdown can sequence teardown per spec §5's cancellation
// rule: close acceptors, close the session manager (which closes every
// channel), stop worker queues, cancel timers.
type server struct {
	cfg config.Config

	systemBus *bus.SystemBus
	marketBus *bus.MarketBus

	pool           *workerpool.Pool
	coordinator    *coordinator.Coordinator
	sessionManager *session.Manager
	feed           *pricefeed.Feed
	authenticator  *auth.Authenticator

	tcpUpListener   net.Listener
	tcpDownListener net.Listener
	broadcast       *transport.UDPTransport

	instruments map[types.Ticker]*coordinator.Instrument
	log         *zap.SugaredLogger
}

func newServer(cfg *config.Config, symbols []string, log *zap.SugaredLogger, level *logging.Level) (*server, error) {
	systemBus := bus.NewSystemBus()
	marketBus := bus.NewMarketBus()

	instruments := make(map[types.Ticker]*coordinator.Instrument, len(symbols))
	feedInstruments := make([]*types.TickerData, 0, len(symbols))
	for _, sym := range symbols {
		tk := types.NewTicker(sym)
		td := &types.TickerData{Ticker: tk}
		td.StorePrice(100)
		instruments[tk] = &coordinator.Instrument{Data: td, Book: orderbook.New()}
		feedInstruments = append(feedInstruments, td)
	}

	pool := workerpool.New(cfg.CPU.CoresApp, 4096, log)
	coord := coordinator.New(marketBus, pool, instruments, durationFromHz(cfg.Rates.MonitorRate), log)

	sessionMgr := session.New(systemBus, marketBus, newOpaqueToken, log)

	store, err := auth.NewPostgresStore(cfg.Postgres)
	if err != nil {
		return nil, err
	}
	var limiter auth.RateLimiter
	if cfg.Kafka.Broker != "" {
		// Redis address is not a spec-defined config key; reuse the
		// kafka broker host when present purely so the limiter has a
		// target in local/dev setups that colocate both.
		limiter = auth.NewRedisLimiter(cfg.Kafka.Broker, 5, time.Minute)
	}
	authenticator := auth.New(systemBus, store, limiter, log)

	feed := pricefeed.New(marketBus, feedInstruments, durationFromHz(cfg.Rates.PriceFeedRate), 1)

	srv := &server{
		cfg:            *cfg,
		systemBus:      systemBus,
		marketBus:      marketBus,
		pool:           pool,
		coordinator:    coord,
		sessionManager: sessionMgr,
		feed:           feed,
		authenticator:  authenticator,
		instruments:    instruments,
		log:            log,
	}

	listenAddr := &net.UDPAddr{Port: cfg.Network.PortUDP}
	broadcastConn, err := transport.ListenBroadcast(listenAddr.String())
	if err != nil {
		return nil, err
	}
	dst := &net.UDPAddr{IP: net.IPv4bcast, Port: cfg.Network.PortUDP}
	srv.broadcast = transport.NewUDP(broadcastConn, dst)
	bus.Handle(marketBus, func(p types.TickerPrice) {
		framed, err := framing.Frame(session.EncodeTickerPrice(p))
		if err != nil {
			return
		}
		srv.broadcast.AsyncTx(framed, nil)
	})

	return srv, nil
}

// newOpaqueToken mints a session token from the first 8 bytes (the
// high 64 bits, read big-endian) of a random UUID rather than a sequential counter, so a client can never
// infer another session's token from its own (spec's token-opacity
// requirement).
func newOpaqueToken() types.Token {
	id := uuid.New()
	return types.Token(binary.BigEndian.Uint64(id[:8]))
}

func durationFromHz(hz float64) time.Duration {
	if hz <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / hz)
}

// Start brings up workers, the coordinator, and the upstream/downstream
// TCP acceptors. The price feed is left stopped until a p+ control
// command, per spec §4.11's PriceFeedStart/Stop pair.
func (s *server) Start(ctx context.Context) {
	s.pool.Start()
	s.coordinator.Start()

	s.tcpUpListener = s.listen(s.cfg.Network.PortTCPUp)
	s.tcpDownListener = s.listen(s.cfg.Network.PortTCPDown)

	go s.acceptUpstream(ctx)
	go s.acceptDownstream(ctx)
}

func (s *server) listen(port int) net.Listener {
	addr := &net.TCPAddr{IP: net.ParseIP(s.cfg.Network.URL), Port: port}
	if addr.IP == nil {
		addr.IP = net.IPv4zero
	}
	ln, err := net.ListenTCP("tcp", addr)
	if err != nil {
		s.log.Fatalw("failed to listen", "port", port, "err", err)
	}
	return ln
}

var nextConnID atomic.Uint64

func (s *server) acceptUpstream(ctx context.Context) {
	for {
		conn, err := s.tcpUpListener.Accept()
		if err != nil {
			return
		}
		connID := types.ConnectionId(nextConnID.Add(1))
		tp, err := transport.NewTCP(conn)
		if err != nil {
			conn.Close()
			continue
		}
		var ch *session.Channel
		decoder := session.NewUpstreamDecoder(s.sessionManager, s.marketBus, func(types.ConnectionId) (types.ClientId, bool) {
			return ch.ClientID()
		}, s.log)
		ch = session.NewChannel(connID, tp, decoder, func(ev session.ChannelStatusEvent) {
			bus.Publish(s.systemBus, ev)
		}, s.log)
		s.sessionManager.AcceptUpstream(ch)
		if err := ch.Start(ctx); err != nil {
			s.log.Warnw("failed to start upstream channel", "conn", connID, "err", err)
		}
	}
}

func (s *server) acceptDownstream(ctx context.Context) {
	for {
		conn, err := s.tcpDownListener.Accept()
		if err != nil {
			return
		}
		connID := types.ConnectionId(nextConnID.Add(1))
		tp, err := transport.NewTCP(conn)
		if err != nil {
			conn.Close()
			continue
		}
		decoder := session.NewDownstreamDecoder(s.sessionManager, s.log)
		ch := session.NewChannel(connID, tp, decoder, func(ev session.ChannelStatusEvent) {
			bus.Publish(s.systemBus, ev)
		}, s.log)
		s.sessionManager.AcceptDownstream(ch)
		if err := ch.Start(ctx); err != nil {
			s.log.Warnw("failed to start downstream channel", "conn", connID, "err", err)
		}
	}
}

// Shutdown sequences teardown per spec §5: stop accepting new
// connections, stop the price feed and coordinator timers, then drain
// and join the worker pool.
func (s *server) Shutdown() {
	if s.tcpUpListener != nil {
		s.tcpUpListener.Close()
	}
	if s.tcpDownListener != nil {
		s.tcpDownListener.Close()
	}
	s.sessionManager.Close()
	s.feed.Stop()
	s.coordinator.Stop()
	s.pool.Stop()
	if s.broadcast != nil {
		s.broadcast.Close()
	}
}

func runControlPlane(s *server, log *zap.SugaredLogger, level *logging.Level) {
	parser := control.NewParser(os.Stdin, log)
	for {
		cmd, ok := parser.Next()
		if !ok {
			return
		}
		switch cmd {
		case control.CommandQuit:
			syscall.Kill(syscall.Getpid(), syscall.SIGTERM)
			return
		case control.CommandPriceFeedStart:
			s.feed.Start()
		case control.CommandPriceFeedStop:
			s.feed.Stop()
		case control.CommandMonitorUp:
			s.coordinator.RaiseMonitorRate()
		case control.CommandMonitorDown:
			s.coordinator.LowerMonitorRate()
		case control.CommandLogUp:
			level.Up()
		case control.CommandLogDown:
			level.Down()
		case control.CommandMonitorPrint:
			log.Infow("sessions", "count", s.sessionManager.SessionCount())
		}
	}
}
