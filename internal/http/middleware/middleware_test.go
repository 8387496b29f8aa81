package middleware_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/nudge/common/logger"
	"basegraph.app/nudge/internal/http/middleware"
)

func records(buf *bytes.Buffer) []map[string]any {
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		Expect(json.Unmarshal([]byte(line), &rec)).To(Succeed())
		out = append(out, rec)
	}
	return out
}

var _ = Describe("middleware", func() {
	var (
		buf      *bytes.Buffer
		engine   *gin.Engine
		previous *slog.Logger
	)

	BeforeEach(func() {
		buf = &bytes.Buffer{}
		previous = slog.Default()
		inner := slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo})
		slog.SetDefault(slog.New(logger.NewTraceHandler(inner)))
		DeferCleanup(func() { slog.SetDefault(previous) })

		engine = gin.New()
		engine.Use(middleware.Recovery(), middleware.Logger("/health"))
		engine.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
		engine.GET("/targets/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
		engine.GET("/boom", func(c *gin.Context) { panic("kaboom") })
	})

	serve := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	It("logs the route template rather than the raw path", func() {
		Expect(serve("/targets/42").Code).To(Equal(http.StatusNotFound))

		recs := records(buf)
		Expect(recs).To(HaveLen(1))
		Expect(recs[0]["route"]).To(Equal("/targets/:id"))
		Expect(recs[0]["level"]).To(Equal("WARN"))
		Expect(recs[0]["component"]).To(Equal("nudge.http"))
	})

	It("keeps quiet routes below info", func() {
		Expect(serve("/health").Code).To(Equal(http.StatusOK))
		Expect(buf.Len()).To(BeZero())
	})

	It("answers a panic with 500 and logs it", func() {
		w := serve("/boom")
		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(w.Body.String()).To(ContainSubstring("internal server error"))

		recs := records(buf)
		Expect(recs).To(HaveLen(1))
		Expect(recs[0]["msg"]).To(Equal("handler panicked"))
		Expect(recs[0]["route"]).To(Equal("/boom"))
		Expect(recs[0]["error"]).To(ContainSubstring("kaboom"))
	})
})
