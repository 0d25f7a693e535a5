package main

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/harrisonrobin/tasksheet/pkg/auth"
	"github.com/harrisonrobin/tasksheet/pkg/cache"
	"github.com/harrisonrobin/tasksheet/pkg/config"
	"github.com/harrisonrobin/tasksheet/pkg/ledger"
	"github.com/harrisonrobin/tasksheet/pkg/notify"
	"github.com/harrisonrobin/tasksheet/pkg/repo"
	"github.com/harrisonrobin/tasksheet/pkg/server"
	"github.com/harrisonrobin/tasksheet/pkg/sheets"
	"github.com/harrisonrobin/tasksheet/pkg/sqlite"
)

// app holds the store and credentials a command runs against.
type app struct {
	cfg        *config.Config
	repo       repo.Repository
	pinger     server.Pinger
	httpClient *http.Client
	closers    []func() error
}

// loadConfig reads the config file and applies the global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if sheetFlag != "" {
		cfg.Spreadsheet = sheetFlag
		cfg.SpreadsheetID = ""
	}
	if backendFlag != "" {
		cfg.Backend = backendFlag
	}
	if redisFlag != "" {
		cfg.RedisAddr = redisFlag
	}
	return cfg, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}

	var cacheName string
	switch strings.ToLower(cfg.Backend) {
	case "", "sheets":
		client, err := a.googleClient(ctx)
		if err != nil {
			return nil, err
		}
		// The spreadsheet is opened on first use, so an unreachable one fails
		// the load instead of the command and a reload can recover.
		grid := sheets.NewLazyGrid(func(ctx context.Context) (sheets.Grid, error) {
			svc, err := sheets.NewClient(ctx, client, cfg.Spreadsheet, cfg.SpreadsheetID)
			if err != nil {
				return nil, err
			}
			return svc, nil
		})
		store := sheets.NewStore(grid, cfg.MaxRows)
		a.repo, a.pinger = store, store
		cacheName = "sheets:" + cfg.Spreadsheet
	case "sqlite":
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		a.repo, a.pinger = store, store
		cacheName = "sqlite:" + cfg.SQLitePath
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	if cfg.RedisAddr != "" {
		rc := redis.NewClient(redisOptions(cfg.RedisAddr))
		a.closers = append(a.closers, rc.Close)
		a.repo = cache.New(a.repo, rc, cacheName, cfg.CacheTTL)
		log.Debugf("caching ledger in redis at %s", cfg.RedisAddr)
	}
	return a, nil
}

// redisOptions accepts either a redis:// URL or a bare host:port.
func redisOptions(addr string) *redis.Options {
	if opts, err := redis.ParseURL(addr); err == nil {
		return opts
	}
	return &redis.Options{Addr: addr}
}

func (a *app) googleClient(ctx context.Context) (*http.Client, error) {
	if a.httpClient != nil {
		return a.httpClient, nil
	}
	client, err := auth.GetClient(ctx, auth.Scopes)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	a.httpClient = client
	return client, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warnf("close: %v", err)
		}
	}
}

// openSession loads the ledger. A load failure is logged and the session
// starts empty, so a later reload can recover.
func (a *app) openSession(ctx context.Context) (*ledger.Session, error) {
	loadCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	return ledger.Open(loadCtx, a.repo)
}

func (a *app) transport(ctx context.Context) (notify.Transport, error) {
	m := a.cfg.Mail
	switch strings.ToLower(m.Transport) {
	case "", "gmail":
		client, err := a.googleClient(ctx)
		if err != nil {
			return nil, err
		}
		gm, err := notify.NewGmailTransport(ctx, client)
		if err != nil {
			return nil, err
		}
		return gm, nil
	case "smtp":
		if m.SMTPHost == "" {
			return nil, fmt.Errorf("mail.smtp_host is required for the smtp transport")
		}
		return &notify.SMTPTransport{Host: m.SMTPHost, Port: m.SMTPPort, Username: m.Username, Password: m.Password}, nil
	}
	return nil, fmt.Errorf("unknown mail transport %q", m.Transport)
}

func (a *app) dispatcher(ctx context.Context) (*notify.Dispatcher, error) {
	tr, err := a.transport(ctx)
	if err != nil {
		return nil, err
	}
	m := a.cfg.Mail
	return &notify.Dispatcher{
		Transport:      tr,
		From:           mail.Address{Name: m.FromName, Address: m.From},
		Subject:        m.Subject,
		Salutation:     m.Salutation,
		AppLink:        m.AppLink,
		Directory:      a.cfg.Recipients,
		ClearAfterSend: m.ClearAfterSend,
	}, nil
}
