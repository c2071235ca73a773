package user_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	"github.com/frahmantamala/scale-custody/internal"
	"github.com/frahmantamala/scale-custody/internal/audit"
	auditPostgres "github.com/frahmantamala/scale-custody/internal/audit/postgres"
	"github.com/frahmantamala/scale-custody/internal/core/custody"
	"github.com/frahmantamala/scale-custody/internal/core/database"
	"github.com/frahmantamala/scale-custody/internal/core/database/testdb"
	"github.com/frahmantamala/scale-custody/internal/transport"
	"github.com/frahmantamala/scale-custody/internal/user"
	userPostgres "github.com/frahmantamala/scale-custody/internal/user/postgres"
	"github.com/frahmantamala/scale-custody/pkg/logger"
)

var _ = Describe("User Handler", func() {
	var (
		router http.Handler
		ctx    context.Context
	)

	BeforeEach(func() {
		db, err := testdb.Open()
		Expect(err).NotTo(HaveOccurred())

		trail := audit.NewService(auditPostgres.NewAuditRepository(db), logger.Discard())
		svc := user.NewService(userPostgres.NewUserRepository(db), database.NewTransactor(db), trail, bcrypt.MinCost, logger.Discard())
		h := user.NewHandler(transport.NewBaseHandler(logger.Discard()), svc)

		r := chi.NewRouter()
		r.Get("/users", h.ListUsers)
		r.Post("/users", h.CreateUser)
		r.Patch("/users/{id}", h.UpdateUser)
		router = r

		admin := testdb.MustUser(db, custody.RoleAdmin)
		ctx = internal.ContextWithActor(context.Background(), internal.Actor{UserID: admin.ID, Role: custody.RoleAdmin})
	})

	do := func(method, path string, body interface{}) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &buf).WithContext(ctx)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("creates a user and never echoes the hash", func() {
		w := do(http.MethodPost, "/users", validCreate("9000", "new@example.mil"))
		Expect(w.Code).To(Equal(http.StatusCreated))
		Expect(w.Body.String()).NotTo(ContainSubstring("password"))
		Expect(w.Body.String()).To(ContainSubstring(`"dodId":"9000"`))
	})

	It("maps duplicates to 409", func() {
		Expect(do(http.MethodPost, "/users", validCreate("9100", "a@example.mil")).Code).To(Equal(http.StatusCreated))
		w := do(http.MethodPost, "/users", validCreate("9100", "b@example.mil"))
		Expect(w.Code).To(Equal(http.StatusConflict))
		Expect(w.Body.String()).To(ContainSubstring("CONSTRAINT_VIOLATION"))
	})

	It("maps malformed bodies and ids to 400", func() {
		req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewBufferString("{")).WithContext(ctx)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		Expect(w.Code).To(Equal(http.StatusBadRequest))

		Expect(do(http.MethodPatch, "/users/abc", map[string]string{"firstName": "X"}).Code).To(Equal(http.StatusBadRequest))
	})

	It("lists users", func() {
		w := do(http.MethodGet, "/users", nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		var body user.UsersResponse
		Expect(json.NewDecoder(w.Body).Decode(&body)).To(Succeed())
		Expect(body.Users).To(HaveLen(1))
	})

	It("updates a user", func() {
		w := do(http.MethodPost, "/users", validCreate("9200", "c@example.mil"))
		var created user.User
		Expect(json.NewDecoder(w.Body).Decode(&created)).To(Succeed())

		w = do(http.MethodPatch, "/users/"+itoa(created.ID), map[string]string{"role": "viewer"})
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(`"role":"viewer"`))
	})
})
