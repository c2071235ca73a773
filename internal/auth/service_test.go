package auth_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/frahmantamala/scale-custody/internal"
	"github.com/frahmantamala/scale-custody/internal/audit"
	auditPostgres "github.com/frahmantamala/scale-custody/internal/audit/postgres"
	"github.com/frahmantamala/scale-custody/internal/auth"
	"github.com/frahmantamala/scale-custody/internal/core/custody"
	"github.com/frahmantamala/scale-custody/internal/core/database"
	"github.com/frahmantamala/scale-custody/internal/core/database/testdb"
	auditDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/auditlog"
	userDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/user"
	"github.com/frahmantamala/scale-custody/internal/obs"
	userPostgres "github.com/frahmantamala/scale-custody/internal/user/postgres"
	"github.com/frahmantamala/scale-custody/pkg/logger"
)

func newAuthService(db *gorm.DB) (*auth.Service, *auth.JWTTokenGenerator) {
	tokens := auth.NewJWTTokenGenerator(testSecret, "scale-custody", time.Hour)
	trail := audit.NewService(auditPostgres.NewAuditRepository(db), logger.Discard())
	svc := auth.NewService(userPostgres.NewUserRepository(db), database.NewTransactor(db), trail, tokens, bcrypt.MinCost, logger.Discard())
	return svc, tokens
}

// withPassword stores a real bcrypt hash for u.
func withPassword(db *gorm.DB, u *userDatamodel.User, password string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	Expect(err).NotTo(HaveOccurred())
	Expect(db.Model(u).Update("password_hash", string(hash)).Error).To(Succeed())
}

var _ = Describe("AuthService", func() {
	var (
		db      *gorm.DB
		service *auth.Service
		tokens  *auth.JWTTokenGenerator
		tech    *userDatamodel.User
	)

	BeforeEach(func() {
		var err error
		db, err = testdb.Open()
		Expect(err).NotTo(HaveOccurred())
		service, tokens = newAuthService(db)
		tech = testdb.MustUser(db, custody.RoleTechnician)
		withPassword(db, tech, "correct horse")
	})

	Describe("Login", func() {
		It("should issue a token, stamp the login and record it", func() {
			before := testutil.ToFloat64(obs.LoginAttemptsTotal.WithLabelValues("success"))
			ctx := internal.ContextWithRequestInfo(context.Background(), internal.RequestInfo{IPAddress: "192.0.2.4", UserAgent: "field-tablet"})

			resp, err := service.Login(ctx, auth.LoginDTO{DodID: " " + tech.DodID + " ", Password: "correct horse"})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.AccessToken).NotTo(BeEmpty())
			Expect(resp.User.ID).To(Equal(tech.ID))
			Expect(resp.User.LastLoginAt).NotTo(BeNil())

			claims, err := tokens.ValidateToken(resp.AccessToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims.Subject).To(Equal(itoa(tech.ID)))

			var stored userDatamodel.User
			Expect(db.First(&stored, tech.ID).Error).To(Succeed())
			Expect(stored.LastLoginAt).NotTo(BeNil())

			var logs []auditDatamodel.AuditLog
			Expect(db.Find(&logs).Error).To(Succeed())
			Expect(logs).To(HaveLen(1))
			Expect(logs[0].UserID).To(Equal(tech.ID))
			Expect(logs[0].ActionType).To(Equal(custody.ActionUpdated))
			Expect(logs[0].Description).To(Equal("User logged in"))
			Expect(*logs[0].IPAddress).To(Equal("192.0.2.4"))
			Expect(*logs[0].UserAgent).To(Equal("field-tablet"))

			Expect(testutil.ToFloat64(obs.LoginAttemptsTotal.WithLabelValues("success"))).To(Equal(before + 1))
		})

		It("should never expose the credential hash", func() {
			resp, err := service.Login(context.Background(), auth.LoginDTO{DodID: tech.DodID, Password: "correct horse"})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.User.PasswordHash).NotTo(BeEmpty())
			raw, err := jsonOf(resp)
			Expect(err).NotTo(HaveOccurred())
			Expect(raw).NotTo(ContainSubstring("$2a$"))
			Expect(raw).NotTo(ContainSubstring("passwordHash"))
		})

		It("should fail the same way for wrong passwords, unknown ids and inactive users", func() {
			failures := testutil.ToFloat64(obs.LoginAttemptsTotal.WithLabelValues("failure"))

			_, err := service.Login(context.Background(), auth.LoginDTO{DodID: tech.DodID, Password: "wrong"})
			Expect(internal.HasCode(err, internal.ErrCodeInvalidCredentials)).To(BeTrue())

			_, err = service.Login(context.Background(), auth.LoginDTO{DodID: "NOPE", Password: "correct horse"})
			Expect(internal.HasCode(err, internal.ErrCodeInvalidCredentials)).To(BeTrue())

			Expect(db.Model(tech).Update("is_active", false).Error).To(Succeed())
			_, err = service.Login(context.Background(), auth.LoginDTO{DodID: tech.DodID, Password: "correct horse"})
			Expect(internal.HasCode(err, internal.ErrCodeInvalidCredentials)).To(BeTrue())

			Expect(testutil.ToFloat64(obs.LoginAttemptsTotal.WithLabelValues("failure"))).To(Equal(failures + 3))

			var count int64
			Expect(db.Model(&auditDatamodel.AuditLog{}).Count(&count).Error).To(Succeed())
			Expect(count).To(BeZero())
		})

		It("should validate the request", func() {
			_, err := service.Login(context.Background(), auth.LoginDTO{})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})
	})

	Describe("Authenticate", func() {
		It("should resolve the current role from the store", func() {
			signed, _, err := tokens.GenerateAccessToken(tech.ID, custody.RoleTechnician)
			Expect(err).NotTo(HaveOccurred())
			Expect(db.Model(tech).Update("role", custody.RoleViewer).Error).To(Succeed())

			actor, err := service.Authenticate(context.Background(), signed)
			Expect(err).NotTo(HaveOccurred())
			Expect(actor).To(Equal(internal.Actor{UserID: tech.ID, Role: custody.RoleViewer}))
		})

		It("should reject tokens of deactivated users", func() {
			signed, _, err := tokens.GenerateAccessToken(tech.ID, custody.RoleTechnician)
			Expect(err).NotTo(HaveOccurred())
			Expect(db.Model(tech).Update("is_active", false).Error).To(Succeed())

			_, err = service.Authenticate(context.Background(), signed)
			Expect(internal.HasCode(err, internal.ErrCodeInvalidToken)).To(BeTrue())
		})

		It("should require a token", func() {
			_, err := service.Authenticate(context.Background(), "")
			Expect(internal.HasCode(err, internal.ErrCodeAuthRequired)).To(BeTrue())
		})
	})

	Describe("Me", func() {
		It("should return the actor's profile", func() {
			ctx := internal.ContextWithActor(context.Background(), internal.Actor{UserID: tech.ID, Role: tech.Role})
			me, err := service.Me(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(me.DodID).To(Equal(tech.DodID))
		})
	})
})
