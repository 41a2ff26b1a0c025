package cli

import (
	"context"
	"testing"

	"classroom-quiz-service/internal/config"
	"classroom-quiz-service/internal/infra/memory"
)

func TestBuildNotifierDrivers(t *testing.T) {
	cfg := config.Config{}

	cfg.Notifier.Driver = "memory"
	n, closeFn, err := buildNotifier(cfg, nil)
	if err != nil {
		t.Fatalf("memory driver: %v", err)
	}
	closeFn()
	if _, ok := n.(*memory.Broker); !ok {
		t.Fatalf("expected memory broker, got %T", n)
	}

	cfg.Notifier.Driver = "redis"
	if _, _, err := buildNotifier(cfg, nil); err == nil {
		t.Fatalf("expected redis driver to require a client")
	}

	cfg.Notifier.Driver = "carrier-pigeon"
	if _, _, err := buildNotifier(cfg, nil); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"start", "migrate"} {
		if sub, _, err := cmd.Find([]string{name}); err != nil || sub.Name() != name {
			t.Fatalf("expected %s subcommand, err=%v", name, err)
		}
	}
}

func TestInMemoryRepositoriesServeDemoBlock(t *testing.T) {
	repos, loader := buildRepositories(nil)
	if repos.Sessions == nil || repos.Participants == nil || repos.Answers == nil || repos.Teachers == nil {
		t.Fatalf("expected all repositories wired: %+v", repos)
	}
	questions, err := loader.LoadQuestions(context.Background(), "demo")
	if err != nil || len(questions) != 3 {
		t.Fatalf("expected demo block, got %d questions err=%v", len(questions), err)
	}
}
