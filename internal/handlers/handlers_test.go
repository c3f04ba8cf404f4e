package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"golang.org/x/crypto/bcrypt"

	"b2bmarket/internal/cache"
	"b2bmarket/internal/middleware"
	"b2bmarket/internal/models"
	"b2bmarket/internal/sourcing"
)

const testSecret = "handlers-test-secret"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := middleware.RegisterValidators(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func testTokens() TokenConfig {
	return TokenConfig{Secret: testSecret, AccessTTL: 15 * time.Minute, RefreshTTL: time.Hour}
}

// asUser injects an identity the way the auth middleware does.
func asUser(email, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, primitive.NewObjectID())
		c.Set(middleware.EmailKey, email)
		c.Set(middleware.RoleKey, role)
		c.Next()
	}
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

/* =========================
   REQUIREMENTS
========================= */

func TestRequirementsByEmail(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("empty result is 404 with fixed message", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "mtest.requirements", mtest.FirstBatch))

		r := gin.New()
		r.GET("/requirementsByEmail", RequirementsByEmail(mt.DB))
		w := doJSON(r, http.MethodGet, "/requirementsByEmail?email=buyer@acme.test&status=pending", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"message":"No requirements found for the provided email and status"}`, w.Body.String())
	})

	mt.Run("post body lists matches", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "mtest.requirements", mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "reqId", Value: "20250603REQ25015"},
				{Key: "email", Value: "buyer@acme.test"},
				{Key: "status", Value: "pending"},
				{Key: "minQty", Value: 40},
				{Key: "measurement", Value: "tonnes"},
			},
		))

		r := gin.New()
		r.POST("/requirementsByEmail", RequirementsByEmail(mt.DB))
		w := doJSON(r, http.MethodPost, "/requirementsByEmail", gin.H{"email": "Buyer@Acme.test", "status": "pending"})

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var list []models.Requirement
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
		require.Len(t, list, 1)
		assert.Equal(t, "20250603REQ25015", list[0].ReqID)
	})

	mt.Run("email is required", func(mt *mtest.T) {
		r := gin.New()
		r.GET("/requirementsByEmail", RequirementsByEmail(mt.DB))
		w := doJSON(r, http.MethodGet, "/requirementsByEmail", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCreateRequirementHandler(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("stores a pending requirement", func(mt *mtest.T) {
		// requirement insert, then the outbox insert
		mt.AddMockResponses(mtest.CreateSuccessResponse(), mtest.CreateSuccessResponse())
		svc := sourcing.NewService(sourcing.NewMongoStore(mt.DB, false))

		r := gin.New()
		r.POST("/requirements", CreateRequirement(svc))
		w := doJSON(r, http.MethodPost, "/requirements", gin.H{
			"name":          "Acme Buyer",
			"email":         "buyer@acme.test",
			"minQty":        40,
			"measurement":   "tonnes",
			"specification": "TMT bars Fe500",
			"pincode":       "560001",
			"mobile":        "9876543210",
			"userType":      "buyer",
		})

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		body := decodeBody(t, w)
		data := body["data"].(map[string]any)
		assert.Regexp(t, `^\d{8}REQ\d{5}$`, data["reqId"])
		assert.Equal(t, "pending", data["status"])
	})

	mt.Run("rejects malformed pincode", func(mt *mtest.T) {
		svc := sourcing.NewService(sourcing.NewMongoStore(mt.DB, false))

		r := gin.New()
		r.POST("/requirements", CreateRequirement(svc))
		w := doJSON(r, http.MethodPost, "/requirements", gin.H{
			"name":        "Acme Buyer",
			"email":       "buyer@acme.test",
			"minQty":      40,
			"measurement": "tonnes",
			"pincode":     "012345",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "validation failed", decodeBody(t, w)["error"])
	})
}

/* =========================
   AUTH
========================= */

func TestLogin(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("unknown user is unauthorized", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "mtest.users", mtest.FirstBatch))

		r := gin.New()
		r.POST("/login", Login(mt.DB, testTokens()))
		w := doJSON(r, http.MethodPost, "/login", gin.H{"email": "nobody@x.test", "password": "whatever1"})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	mt.Run("issues tokens with identity claims", func(mt *mtest.T) {
		hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
		require.NoError(t, err)
		userID := primitive.NewObjectID()

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "mtest.users", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: userID},
				{Key: "name", Value: "Steel Co"},
				{Key: "email", Value: "sales@steelco.test"},
				{Key: "passwordHash", Value: string(hash)},
				{Key: "role", Value: models.RoleSeller},
				{Key: "isActive", Value: true},
			}),
			mtest.CreateSuccessResponse(),
		)

		r := gin.New()
		r.POST("/login", Login(mt.DB, testTokens()))
		w := doJSON(r, http.MethodPost, "/login", gin.H{"email": "Sales@SteelCo.test", "password": "s3cret-pass"})

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decodeBody(t, w)
		assert.NotEmpty(t, body["refreshToken"])

		claims := jwt.MapClaims{}
		_, err = jwt.ParseWithClaims(body["accessToken"].(string), claims, func(*jwt.Token) (any, error) {
			return []byte(testSecret), nil
		})
		require.NoError(t, err)
		assert.Equal(t, userID.Hex(), claims["userId"])
		assert.Equal(t, "sales@steelco.test", claims["email"])
		assert.Equal(t, models.RoleSeller, claims["role"])
	})

	mt.Run("inactive user is forbidden", func(mt *mtest.T) {
		hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
		require.NoError(t, err)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "mtest.users", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "email", Value: "old@x.test"},
			{Key: "passwordHash", Value: string(hash)},
			{Key: "role", Value: models.RoleBuyer},
			{Key: "isActive", Value: false},
		}))

		r := gin.New()
		r.POST("/login", Login(mt.DB, testTokens()))
		w := doJSON(r, http.MethodPost, "/login", gin.H{"email": "old@x.test", "password": "s3cret-pass"})

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestRegisterValidation(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("rejects admin role and bad mobile", func(mt *mtest.T) {
		r := gin.New()
		r.POST("/register", Register(mt.DB, testTokens()))

		w := doJSON(r, http.MethodPost, "/register", gin.H{
			"name": "X", "email": "x@y.test", "password": "longenough", "mobile": "12345", "role": "buyer",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = doJSON(r, http.MethodPost, "/register", gin.H{
			"name": "X", "email": "x@y.test", "password": "longenough", "mobile": "9876543210", "role": "admin",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	mt.Run("duplicate email conflicts", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "mtest.users", mtest.FirstBatch, bson.D{{Key: "n", Value: int32(1)}}))

		r := gin.New()
		r.POST("/register", Register(mt.DB, testTokens()))
		w := doJSON(r, http.MethodPost, "/register", gin.H{
			"name": "X", "email": "x@y.test", "password": "longenough", "mobile": "9876543210", "role": "seller",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestHashTokenIsStable(t *testing.T) {
	plain, err := generateRefreshString()
	require.NoError(t, err)
	assert.Len(t, plain, 64)
	assert.Equal(t, hashToken(plain), hashToken(plain))
	assert.NotEqual(t, plain, hashToken(plain))
}

/* =========================
   MISC
========================= */

func TestHealthz(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("ok", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		r := gin.New()
		r.GET("/healthz", Healthz(mt.DB))

		w := doJSON(r, http.MethodGet, "/healthz", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	mt.Run("mongo down", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 91, Message: "shutting down"}))
		r := gin.New()
		r.GET("/healthz", Healthz(mt.DB))

		w := doJSON(r, http.MethodGet, "/healthz", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestSitemap(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("lists categories and products", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "mtest.categories", mtest.FirstBatch,
				bson.D{{Key: "slug", Value: "steel-metal"}}),
			mtest.CreateCursorResponse(0, "mtest.products", mtest.FirstBatch,
				bson.D{{Key: "slug", Value: "tmt-bars"}, {Key: "updatedAt", Value: time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)}}),
		)

		r := gin.New()
		r.GET("/sitemap.xml", Sitemap(mt.DB, "https://market.test/"))
		w := doJSON(r, http.MethodGet, "/sitemap.xml", nil)

		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, "<loc>https://market.test/categories/steel-metal</loc>")
		assert.Contains(t, body, "<loc>https://market.test/products/tmt-bars</loc>")
		assert.Contains(t, body, "<lastmod>2025-06-03</lastmod>")
	})
}

func TestCountByStatus(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("folds groups into a map", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "mtest.requirements", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "pending"}, {Key: "count", Value: int64(2)}},
			bson.D{{Key: "_id", Value: "Quoted"}, {Key: "count", Value: int64(1)}},
		))

		counts, err := countByStatus(context.Background(), mt.Coll, nil)
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"pending": 2, "Quoted": 1}, counts)
	})
}

func TestSellerQuotationsRequiresIdentity(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("lists flattened entries", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "mtest.quotations", mtest.FirstBatch,
			bson.D{
				{Key: "requirementId", Value: "20250603REQ25015"},
				{Key: "status", Value: "pending"},
				{Key: "amount", Value: 0.0},
			},
		))

		r := gin.New()
		r.GET("/seller/quotations", asUser("sales@steelco.test", models.RoleSeller), SellerQuotations(mt.DB))
		w := doJSON(r, http.MethodGet, "/seller/quotations?status=pending", nil)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		data := decodeBody(t, w)["data"].([]any)
		require.Len(t, data, 1)
		assert.Equal(t, "20250603REQ25015", data[0].(map[string]any)["requirementId"])
	})

	mt.Run("unauthenticated", func(mt *mtest.T) {
		r := gin.New()
		r.GET("/seller/quotations", SellerQuotations(mt.DB))
		w := doJSON(r, http.MethodGet, "/seller/quotations", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

/* =========================
   CATALOG
========================= */

func TestCreateCategory(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("derives slug from name", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "mtest.categories", mtest.FirstBatch),
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
				{Key: "_id", Value: "categoryId"},
				{Key: "seq", Value: int64(7)},
			}}),
			mtest.CreateSuccessResponse(),
		)

		r := gin.New()
		r.POST("/admin/categories", CreateCategory(mt.DB, cache.Noop{}))
		w := doJSON(r, http.MethodPost, "/admin/categories", gin.H{"name": "Steel & Metal"})

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		body := decodeBody(t, w)
		assert.Equal(t, "steel-metal", body["slug"])
		assert.Equal(t, float64(7), body["id"])
		assert.Equal(t, true, body["isActive"])
	})

	mt.Run("existing slug conflicts", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "mtest.categories", mtest.FirstBatch, bson.D{{Key: "n", Value: int32(1)}}))

		r := gin.New()
		r.POST("/admin/categories", CreateCategory(mt.DB, cache.Noop{}))
		w := doJSON(r, http.MethodPost, "/admin/categories", gin.H{"name": "Steel & Metal"})

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	mt.Run("unique index race conflicts", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "mtest.categories", mtest.FirstBatch),
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
				{Key: "_id", Value: "categoryId"},
				{Key: "seq", Value: int64(8)},
			}}),
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key"}),
		)

		r := gin.New()
		r.POST("/admin/categories", CreateCategory(mt.DB, cache.Noop{}))
		w := doJSON(r, http.MethodPost, "/admin/categories", gin.H{"name": "Steel & Metal"})

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

/* =========================
   SOURCING
========================= */

func mongoService(mt *mtest.T) *sourcing.Service {
	return sourcing.NewService(sourcing.NewMongoStore(mt.DB, false))
}

func quotaDoc(buyerEmail, status string) bson.D {
	return bson.D{
		{Key: "_id", Value: primitive.NewObjectID()},
		{Key: "reqId", Value: "20250603REQ25015"},
		{Key: "buyer_email", Value: buyerEmail},
		{Key: "seller_email", Value: "sales@steelco.test"},
		{Key: "quantity", Value: int32(40)},
		{Key: "amount", Value: 105.0},
		{Key: "sellerAmount", Value: 100.0},
		{Key: "status", Value: status},
	}
}

func negotiationDoc(status string) bson.D {
	return bson.D{
		{Key: "_id", Value: primitive.NewObjectID()},
		{Key: "negId", Value: "20250603NEG123456"},
		{Key: "reqId", Value: "20250603REQ25015"},
		{Key: "quotaId", Value: primitive.NewObjectID()},
		{Key: "buyerEmail", Value: "buyer@acme.test"},
		{Key: "sellerEmail", Value: "sales@steelco.test"},
		{Key: "status", Value: status},
		{Key: "version", Value: int64(1)},
		{Key: "negotiationDetails", Value: bson.D{
			{Key: "negotiationAmount", Value: 98.0},
			{Key: "negotiationQuantity", Value: int32(35)},
		}},
	}
}

func TestCreateNegotiationHandler(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	body := gin.H{
		"SellerEmail":      "sales@steelco.test",
		"reqId":            "20250603REQ25015",
		"negotiationValue": 98,
		"yourQty":          35,
	}

	mt.Run("quota already in negotiation is 422", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "mtest.quotaRequirementCollection", mtest.FirstBatch,
			quotaDoc("buyer@acme.test", "Negotiation")))

		r := gin.New()
		r.POST("/negotiation", asUser("buyer@acme.test", models.RoleBuyer), CreateNegotiation(mongoService(mt)))
		w := doJSON(r, http.MethodPost, "/negotiation", body)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
		assert.Equal(t, "STATE_CONFLICT", decodeBody(t, w)["code"])
	})

	mt.Run("another buyer's quota is 403", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "mtest.quotaRequirementCollection", mtest.FirstBatch,
			quotaDoc("other@acme.test", "Quoted")))

		r := gin.New()
		r.POST("/negotiation", asUser("buyer@acme.test", models.RoleBuyer), CreateNegotiation(mongoService(mt)))
		w := doJSON(r, http.MethodPost, "/negotiation", body)

		assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
		assert.Equal(t, "FORBIDDEN", decodeBody(t, w)["code"])
	})

	mt.Run("missing quantity is 400", func(mt *mtest.T) {
		r := gin.New()
		r.POST("/negotiation", asUser("buyer@acme.test", models.RoleBuyer), CreateNegotiation(mongoService(mt)))
		w := doJSON(r, http.MethodPost, "/negotiation", gin.H{
			"SellerEmail": "sales@steelco.test", "reqId": "20250603REQ25015", "negotiationValue": 98,
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestTransitionNegotiationHandler(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("skipping ahead is 422", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "mtest.negotiations", mtest.FirstBatch,
			negotiationDoc("admin_pending")))

		r := gin.New()
		r.POST("/negotiation/:negId/transition", asUser("ops@market.test", models.RoleAdmin), TransitionNegotiation(mongoService(mt)))
		w := doJSON(r, http.MethodPost, "/negotiation/20250603NEG123456/transition", gin.H{"status": "accepted"})

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
		assert.Equal(t, "STATE_CONFLICT", decodeBody(t, w)["code"])
	})

	mt.Run("buyer cannot answer for the seller", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "mtest.negotiations", mtest.FirstBatch,
			negotiationDoc("admin_pending")))

		r := gin.New()
		r.POST("/negotiation/:negId/transition", asUser("buyer@acme.test", models.RoleBuyer), TransitionNegotiation(mongoService(mt)))
		w := doJSON(r, http.MethodPost, "/negotiation/20250603NEG123456/transition", gin.H{"status": "seller_responded", "amount": 90})

		assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
		assert.Equal(t, "FORBIDDEN", decodeBody(t, w)["code"])
	})

	mt.Run("unknown status is 400", func(mt *mtest.T) {
		r := gin.New()
		r.POST("/negotiation/:negId/transition", asUser("ops@market.test", models.RoleAdmin), TransitionNegotiation(mongoService(mt)))
		w := doJSON(r, http.MethodPost, "/negotiation/20250603NEG123456/transition", gin.H{"status": "haggling"})

		assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	})
}

func TestSavePaymentHandler(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	body := gin.H{
		"paymentId": "pay_dup",
		"amount":    105,
		"items":     []gin.H{{"quotaId": primitive.NewObjectID().Hex(), "amount": 105}},
	}

	mt.Run("duplicate payment id is 409", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateCursorResponse(0, "mtest.payments", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "paymentId", Value: "pay_dup"},
				{Key: "buyerEmail", Value: "buyer@acme.test"},
			}),
		)

		r := gin.New()
		r.POST("/savePayment", asUser("buyer@acme.test", models.RoleBuyer), SavePayment(mt.DB, mongoService(mt)))
		w := doJSON(r, http.MethodPost, "/savePayment", body)

		assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
		assert.Equal(t, "CONFLICT", decodeBody(t, w)["code"])
	})

	mt.Run("database down is 503", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 91, Message: "shutting down"}))

		r := gin.New()
		r.POST("/savePayment", asUser("buyer@acme.test", models.RoleBuyer), SavePayment(mt.DB, mongoService(mt)))
		w := doJSON(r, http.MethodPost, "/savePayment", body)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestGetQuotationHandler(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	quotation := bson.D{
		{Key: "_id", Value: primitive.NewObjectID()},
		{Key: "requirementId", Value: "20250603REQ25015"},
		{Key: "status", Value: "Quoted"},
		{Key: "selectedCompanies", Value: bson.A{
			bson.D{{Key: "email", Value: "sales@steelco.test"}, {Key: "amount", Value: 0.0}, {Key: "status", Value: "pending"}},
			bson.D{{Key: "email", Value: "rival@steel.test"}, {Key: "amount", Value: 48000.0}, {Key: "status", Value: "Quoted"}},
		}},
	}

	mt.Run("seller only sees its own entry", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "mtest.quotations", mtest.FirstBatch, quotation))

		r := gin.New()
		r.GET("/quotations/:requirementId", asUser("sales@steelco.test", models.RoleSeller), GetQuotation(mongoService(mt)))
		w := doJSON(r, http.MethodGet, "/quotations/20250603REQ25015", nil)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		companies := decodeBody(t, w)["selectedCompanies"].([]any)
		require.Len(t, companies, 1)
		assert.Equal(t, "sales@steelco.test", companies[0].(map[string]any)["email"])
		assert.NotContains(t, w.Body.String(), "rival@steel.test")
	})

	mt.Run("another buyer is forbidden", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "mtest.quotations", mtest.FirstBatch, quotation),
			mtest.CreateCursorResponse(0, "mtest.requirements", mtest.FirstBatch, bson.D{
				{Key: "reqId", Value: "20250603REQ25015"},
				{Key: "email", Value: "buyer@acme.test"},
			}),
		)

		r := gin.New()
		r.GET("/quotations/:requirementId", asUser("other@acme.test", models.RoleBuyer), GetQuotation(mongoService(mt)))
		w := doJSON(r, http.MethodGet, "/quotations/20250603REQ25015", nil)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestGetRequirementHandler(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	requirement := bson.D{
		{Key: "_id", Value: primitive.NewObjectID()},
		{Key: "reqId", Value: "20250603REQ25015"},
		{Key: "email", Value: "buyer@acme.test"},
		{Key: "mobile", Value: "9876543210"},
		{Key: "status", Value: "pending"},
	}

	mt.Run("needs an identity", func(mt *mtest.T) {
		r := gin.New()
		r.GET("/requirements/:reqId", GetRequirement(mongoService(mt)))
		w := doJSON(r, http.MethodGet, "/requirements/20250603REQ25015", nil)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	mt.Run("owner sees contact details", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "mtest.requirements", mtest.FirstBatch, requirement))

		r := gin.New()
		r.GET("/requirements/:reqId", asUser("buyer@acme.test", models.RoleBuyer), GetRequirement(mongoService(mt)))
		w := doJSON(r, http.MethodGet, "/requirements/20250603REQ25015", nil)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "9876543210", decodeBody(t, w)["mobile"])
	})

	mt.Run("seller is forbidden", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "mtest.requirements", mtest.FirstBatch, requirement))

		r := gin.New()
		r.GET("/requirements/:reqId", asUser("sales@steelco.test", models.RoleSeller), GetRequirement(mongoService(mt)))
		w := doJSON(r, http.MethodGet, "/requirements/20250603REQ25015", nil)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
