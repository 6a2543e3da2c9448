package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/simsearch/pkg/logger"
)

// jsonLines decodes one JSON object per line of buf.
func jsonLines(buf *bytes.Buffer) []map[string]any {
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		ExpectWithOffset(1, json.Unmarshal([]byte(line), &rec)).To(Succeed(), line)
		out = append(out, rec)
	}
	return out
}

type failingHandler struct{}

func (failingHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("disk full") }
func (h failingHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h failingHandler) WithGroup(string) slog.Handler           { return h }

var _ = Describe("New", func() {
	var buf bytes.Buffer

	BeforeEach(func() {
		buf.Reset()
	})

	DescribeTable("level filtering",
		func(opt logger.Option, debugShown, infoShown bool) {
			l := logger.New(logger.WithWriter(&buf), opt)
			l.Debug("batch detail", "index", "documents")
			l.Info("index created", "index", "documents")
			l.Warn("index record missing")

			Expect(strings.Contains(buf.String(), "batch detail")).To(Equal(debugShown))
			Expect(strings.Contains(buf.String(), "index created")).To(Equal(infoShown))
			Expect(buf.String()).To(ContainSubstring("index record missing"))
		},
		Entry("debug on", logger.WithDebug(true), true, true),
		Entry("debug off", logger.WithDebug(false), false, true),
		Entry("explicit warn", logger.WithLevel(slog.LevelWarn), false, false),
	)

	It("writes text with attributes by default", func() {
		logger.New(logger.WithWriter(&buf)).Info("search", "k", 3, "strategy", "ann")

		Expect(buf.String()).To(ContainSubstring("msg=search"))
		Expect(buf.String()).To(ContainSubstring("k=3"))
		Expect(buf.String()).To(ContainSubstring("strategy=ann"))
	})

	It("writes one JSON object per record", func() {
		l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
		l.Info("batch indexed", "count", 42)
		l.With("index", "documents").WithGroup("report").Info("done", "failed", 1)

		recs := jsonLines(&buf)
		Expect(recs).To(HaveLen(2))
		Expect(recs[0]["msg"]).To(Equal("batch indexed"))
		Expect(recs[0]["count"]).To(BeNumerically("==", 42))
		Expect(recs[1]["index"]).To(Equal("documents"))
		Expect(recs[1]["report"]).To(HaveKeyWithValue("failed", BeNumerically("==", 1)))
	})

	It("adds the source location when asked", func() {
		logger.New(logger.WithWriter(&buf), logger.WithJSON(true), logger.WithSource(true)).Info("located")

		Expect(jsonLines(&buf)[0]).To(HaveKey(slog.SourceKey))
	})

	It("renders pretty output", func() {
		logger.New(logger.WithWriter(&buf), logger.WithPretty(true)).Info("serving", "listen", ":8081")

		Expect(buf.String()).To(ContainSubstring("serving"))
		Expect(buf.String()).To(ContainSubstring(":8081"))
	})

	It("copies every record to each writer", func() {
		var other bytes.Buffer
		logger.New(logger.WithWriters(&buf, &other)).Info("copied")

		Expect(buf.String()).To(ContainSubstring("copied"))
		Expect(other.String()).To(Equal(buf.String()))
	})
})

var _ = Describe("Nop", func() {
	It("is disabled at every level and never panics", func() {
		l := logger.Nop()
		for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelError} {
			Expect(l.Enabled(context.Background(), level)).To(BeFalse())
		}
		Expect(func() {
			l.With("index", "x").WithGroup("g").Error("ignored")
		}).NotTo(Panic())
	})
})

var _ = Describe("Multi", func() {
	var pretty, file bytes.Buffer

	BeforeEach(func() {
		pretty.Reset()
		file.Reset()
	})

	It("sends each record to every logger that accepts its level", func() {
		l := logger.Multi(
			logger.New(logger.WithWriter(&pretty), logger.WithLevel(slog.LevelWarn)),
			logger.New(logger.WithWriter(&file), logger.WithJSON(true), logger.WithDebug(true)),
		)
		l.Debug("embedding batch", "count", 2)
		l.Warn("publish failed")

		Expect(pretty.String()).NotTo(ContainSubstring("embedding batch"))
		Expect(pretty.String()).To(ContainSubstring("publish failed"))

		recs := jsonLines(&file)
		Expect(recs).To(HaveLen(2))
		Expect(recs[0]["msg"]).To(Equal("embedding batch"))
	})

	It("is enabled when any logger is", func() {
		l := logger.Multi(logger.Nop(), logger.New(logger.WithWriter(&file), logger.WithLevel(slog.LevelError)))

		Expect(l.Enabled(context.Background(), slog.LevelInfo)).To(BeFalse())
		Expect(l.Enabled(context.Background(), slog.LevelError)).To(BeTrue())
	})

	It("carries attributes and groups to every logger", func() {
		l := logger.Multi(
			logger.New(logger.WithWriter(&pretty), logger.WithJSON(true)),
			logger.New(logger.WithWriter(&file), logger.WithJSON(true)),
		)
		l.With("index", "documents").WithGroup("query").Info("search", "k", 3)

		for _, buf := range []*bytes.Buffer{&pretty, &file} {
			rec := jsonLines(buf)[0]
			Expect(rec["index"]).To(Equal("documents"))
			Expect(rec["query"]).To(HaveKeyWithValue("k", BeNumerically("==", 3)))
		}
	})

	It("keeps writing after one handler fails", func() {
		h := logger.Multi(
			slog.New(failingHandler{}),
			logger.New(logger.WithWriter(&file), logger.WithJSON(true)),
		).Handler()

		err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "still written", 0))
		Expect(err).To(MatchError("disk full"))
		Expect(jsonLines(&file)[0]["msg"]).To(Equal("still written"))
	})
})
