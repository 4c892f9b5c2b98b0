package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/immxrtalbeast/meshrelay/internal/client"
	"github.com/immxrtalbeast/meshrelay/internal/domain"
	"github.com/immxrtalbeast/meshrelay/internal/media"
	"github.com/immxrtalbeast/meshrelay/internal/peer"
	"github.com/immxrtalbeast/meshrelay/internal/signaling"
	"github.com/immxrtalbeast/meshrelay/internal/transfer"
	"github.com/immxrtalbeast/meshrelay/lib/logger/sl"
	"github.com/spf13/cobra"
)

var (
	flagRoom  string
	flagName  string
	flagSend  []string
	flagVideo bool
	flagOut   string
)

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join a room and chat with its members",
	Long: `Join a room and chat with its members. Lines typed on stdin are sent as chat
messages. Commands: /mute, /unmute, /video on|off, /share, /unshare, /peers, /quit.

Examples:
  peer join --room lobby
  peer join --room lobby --name alice --send notes.pdf --out ./downloads`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagRoom == "" {
			return fmt.Errorf("--room is required")
		}
		if flagName == "" {
			flagName = petname.Generate(2, "-")
		}
		return runJoin(cmd.Context())
	},
}

func init() {
	joinCmd.Flags().StringVarP(&flagRoom, "room", "r", "", "room to join")
	joinCmd.Flags().StringVarP(&flagName, "name", "n", "", "display name (random if empty)")
	joinCmd.Flags().StringSliceVarP(&flagSend, "send", "s", nil, "files to send to every peer once connected")
	joinCmd.Flags().BoolVar(&flagVideo, "video", false, "publish a camera track")
	joinCmd.Flags().StringVarP(&flagOut, "out", "o", ".", "directory for received files")
}

func runJoin(parent context.Context) error {
	cfg := loadConfig()
	log := setupLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(flagOut, 0o755); err != nil {
		return fmt.Errorf("output directory: %w", err)
	}

	tr, err := signaling.Dial(ctx, cfg.RelayURL, cfg.Transports, log)
	if err != nil {
		return err
	}

	obs := &terminal{log: log, out: flagOut, send: flagSend, sent: make(map[string]bool)}
	c := client.New(tr, peer.NewPionFactory(cfg.STUNServers), media.NewSampleCapturer(), obs, client.Options{
		Name:       flagName,
		WithCamera: flagVideo,
		Peer: peer.Options{
			ConnectTimeout: cfg.ConnectTimeout,
			Transfer: transfer.Options{
				ChunkSize: cfg.Transfer.ChunkSize,
				HighWater: cfg.Transfer.HighWater,
				LowWater:  cfg.Transfer.LowWater,
			},
			MaxFileSize: cfg.Transfer.MaxFileSize,
		},
	}, log)
	obs.client = c
	obs.ctx = ctx
	defer c.Close()

	if err := c.Join(flagRoom); err != nil {
		return err
	}
	fmt.Printf("joined %q as %s\n", flagRoom, flagName)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.Done():
			return fmt.Errorf("disconnected from relay")
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleLine(c, line, log); quit {
				return nil
			}
		}
	}
}

func handleLine(c *client.Client, line string, log *slog.Logger) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	var err error
	switch fields := strings.Fields(line); fields[0] {
	case "/quit":
		return true
	case "/mute":
		err = c.SetMuted(true)
	case "/unmute":
		err = c.SetMuted(false)
	case "/video":
		err = c.SetCamera(len(fields) < 2 || fields[1] != "off")
	case "/share":
		err = c.StartScreenShare()
	case "/unshare":
		err = c.StopScreenShare()
	case "/peers":
		for _, id := range c.Peers() {
			if s, ok := c.Session(id); ok {
				fmt.Printf("  %s  %s\n", id, s.State())
			}
		}
	default:
		err = c.SendChat(line)
	}
	if err != nil {
		log.Warn("command failed", slog.String("input", line), sl.Err(err))
	}
	return false
}

// terminal prints room events and stores received files.
type terminal struct {
	client.NopObserver

	log    *slog.Logger
	out    string
	send   []string
	client *client.Client
	ctx    context.Context

	mu   sync.Mutex
	sent map[string]bool
}

func (t *terminal) OnRoster(users []string) {
	fmt.Printf("* %d other member(s) in the room\n", len(users))
}

func (t *terminal) OnPeerLeft(peerID string) {
	fmt.Printf("* %s left\n", peerID)
}

func (t *terminal) OnChat(msg domain.ChatMessage) {
	fmt.Printf("[%s] %s: %s\n", msg.Timestamp.Local().Format("15:04:05"), msg.SenderName, msg.Content)
}

func (t *terminal) OnPeerState(peerID string, state peer.State) {
	t.log.Debug("peer state", slog.String("peer_id", peerID), slog.String("state", state.String()))
}

func (t *terminal) OnPeerFailed(peerID string, err error) {
	fmt.Printf("* connection to %s failed: %v\n", peerID, err)
}

func (t *terminal) OnDataChannelOpen(peerID string) {
	fmt.Printf("* connected to %s\n", peerID)

	t.mu.Lock()
	already := t.sent[peerID]
	t.sent[peerID] = true
	t.mu.Unlock()
	if already || len(t.send) == 0 {
		return
	}
	go t.sendFiles(peerID)
}

func (t *terminal) sendFiles(peerID string) {
	for _, path := range t.send {
		f, err := os.Open(path)
		if err != nil {
			t.log.Error("cannot open file", slog.String("path", path), sl.Err(err))
			continue
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			t.log.Error("cannot stat file", slog.String("path", path), sl.Err(err))
			continue
		}
		if _, err := t.client.SendFile(t.ctx, peerID, filepath.Base(path), f, info.Size()); err != nil {
			t.log.Error("send failed", slog.String("path", path), slog.String("peer_id", peerID), sl.Err(err))
		} else {
			fmt.Printf("* sent %s to %s\n", filepath.Base(path), peerID)
		}
		f.Close()
	}
}

func (t *terminal) OnFile(file *transfer.File) {
	name := filepath.Base(file.Name)
	if name == "." || name == string(filepath.Separator) {
		name = file.JobID
	}
	path := filepath.Join(t.out, name)
	if err := os.WriteFile(path, file.Data, 0o644); err != nil {
		t.log.Error("cannot store file", slog.String("path", path), sl.Err(err))
		return
	}
	fmt.Printf("* received %s (%d bytes) from %s\n", path, len(file.Data), file.From)
}

func (t *terminal) OnTransferAbandoned(peerID, jobID string) {
	fmt.Printf("* transfer %s from %s abandoned\n", jobID, peerID)
}

func (t *terminal) OnTransferError(peerID string, err error) {
	t.log.Warn("transfer error", slog.String("peer_id", peerID), sl.Err(err))
}
