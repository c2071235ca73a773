package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

var _ = Describe("HealthHandler", func() {
	var (
		db   *sqlx.DB
		mock sqlmock.Sqlmock
	)

	BeforeEach(func() {
		mockDB, m, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		Expect(err).NotTo(HaveOccurred())
		db = sqlx.NewDb(mockDB, "pgx")
		mock = m
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	check := func(h *HealthHandler) (*httptest.ResponseRecorder, HealthResponse) {
		w := httptest.NewRecorder()
		h.healthCheckHandler(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
		var resp HealthResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		return w, resp
	}

	It("should report healthy when the database and cache answer", func() {
		mock.ExpectPing()

		w, resp := check(NewHealthHandler(db, fakePinger{}))
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(resp.Status).To(Equal(HealthHealthy))
		Expect(resp.Components).To(HaveKey("database"))
		Expect(resp.Components).To(HaveKey("cache"))
	})

	It("should report unhealthy when the database is down", func() {
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		w, resp := check(NewHealthHandler(db, nil))
		Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
		Expect(resp.Status).To(Equal(HealthUnhealthy))
		Expect(resp.Components["database"].Message).To(ContainSubstring("connection refused"))
		Expect(resp.Components).NotTo(HaveKey("cache"))
	})

	It("should report unhealthy when only the cache is down", func() {
		mock.ExpectPing()

		w, resp := check(NewHealthHandler(db, fakePinger{err: errors.New("redis: nil")}))
		Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
		Expect(resp.Components["database"].Status).To(Equal(HealthHealthy))
		Expect(resp.Components["cache"].Status).To(Equal(HealthUnhealthy))
	})

	It("should answer ping without touching dependencies", func() {
		w := httptest.NewRecorder()
		NewHealthHandler(db, nil).pingHandler(w, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring("OK"))
	})
})
