package service

import (
	"context"
	"errors"
	"sync"

	"material-pipeline/dto"
	"material-pipeline/entities"
)

type fakeGenerator struct {
	summary   string
	glossary  []entities.GlossaryEntry
	quiz      []entities.QuizQuestion
	checklist []string
	alignment *entities.Alignment
	failOn    map[string]error
	// interrupt, when set, runs at step interruptOn to simulate a shutdown.
	interruptOn string
	interrupt   func()

	mu    sync.Mutex
	calls []string
}

func (g *fakeGenerator) record(step string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, step)
	if step == g.interruptOn && g.interrupt != nil {
		g.interrupt()
		return context.Canceled
	}
	return g.failOn[step]
}

func (g *fakeGenerator) Summarize(ctx context.Context, transcript, syllabus string) (string, error) {
	if err := g.record("summary"); err != nil {
		return "", err
	}
	return g.summary, nil
}

func (g *fakeGenerator) ExtractGlossary(ctx context.Context, transcript, syllabus string) ([]entities.GlossaryEntry, error) {
	if err := g.record("glossary"); err != nil {
		return nil, err
	}
	return g.glossary, nil
}

func (g *fakeGenerator) BuildQuiz(ctx context.Context, transcript, syllabus string) ([]entities.QuizQuestion, error) {
	if err := g.record("quiz"); err != nil {
		return nil, err
	}
	return g.quiz, nil
}

func (g *fakeGenerator) BuildChecklist(ctx context.Context, transcript, syllabus string) ([]string, error) {
	if err := g.record("checklist"); err != nil {
		return nil, err
	}
	return g.checklist, nil
}

func (g *fakeGenerator) ScoreAlignment(ctx context.Context, transcript, syllabus string) (*entities.Alignment, error) {
	if err := g.record("alignment"); err != nil {
		return nil, err
	}
	return g.alignment, nil
}

type sentMail struct {
	to, subject, body string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *fakeNotifier) Notify(ctx context.Context, recipientEmail, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{to: recipientEmail, subject: subject, body: body})
	return n.err
}

type fakePublisher struct {
	mu         sync.Mutex
	generation []dto.GenerationMessage
	transcode  []dto.TranscodeMessage
	err        error
}

func (p *fakePublisher) PublishGeneration(ctx context.Context, msg dto.GenerationMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.generation = append(p.generation, msg)
	return nil
}

func (p *fakePublisher) PublishTranscode(ctx context.Context, msg dto.TranscodeMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.transcode = append(p.transcode, msg)
	return nil
}

var errOracleDown = errors.New("oracle unavailable")
