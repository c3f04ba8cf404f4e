package handlers

import (
	"context"
	"encoding/xml"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"b2bmarket/internal/database"
	"b2bmarket/internal/gst"
)

func Home() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": "b2bmarket", "status": "ok"})
	}
}

/*
GET /healthz
*/
func Healthz(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /healthz"

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := ensureDBConnection(ctx, db); err != nil {
			routeLogger(c, route).Error().Err(err).Msg("mongo ping failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "mongo": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mongo": "up"})
	}
}

// TaxpayerLookup resolves a GSTIN to its registry record.
type TaxpayerLookup interface {
	Lookup(ctx context.Context, gstin string) (*gst.Taxpayer, error)
}

/*
GET /api/v1/gst/:gstin
*/
func LookupGST(client TaxpayerLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /gst/:gstin"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*requestTimeout)
		defer cancel()

		taxpayer, err := client.Lookup(ctx, c.Param("gstin"))
		if err != nil {
			respondAppError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, taxpayer)
	}
}

/* =========================
   SITEMAP
========================= */

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
}

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapEntry struct {
	Slug      string    `bson:"slug"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func sitemapEntries(ctx context.Context, coll *mongo.Collection, filter bson.M) ([]sitemapEntry, error) {
	cursor, err := coll.Find(ctx, filter, options.Find().
		SetProjection(bson.M{"slug": 1, "updatedAt": 1}).
		SetSort(bson.D{{Key: "slug", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []sitemapEntry
	err = cursor.All(ctx, &entries)
	return entries, err
}

func appendSitemapURLs(urls []sitemapURL, base, section string, entries []sitemapEntry) []sitemapURL {
	for _, e := range entries {
		if e.Slug == "" {
			continue
		}
		u := sitemapURL{Loc: base + "/" + section + "/" + e.Slug, ChangeFreq: "weekly"}
		if !e.UpdatedAt.IsZero() {
			u.LastMod = e.UpdatedAt.UTC().Format("2006-01-02")
		}
		urls = append(urls, u)
	}
	return urls
}

/*
GET /sitemap.xml
*/
func Sitemap(db *mongo.Database, baseURL string) gin.HandlerFunc {
	base := strings.TrimRight(baseURL, "/")
	return func(c *gin.Context) {
		const route = "GET /sitemap.xml"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		categories, err := sitemapEntries(ctx, db.Collection(database.CollCategories), bson.M{"isActive": true})
		if err != nil {
			routeLogger(c, route).Error().Err(err).Msg("category query failed")
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		products, err := sitemapEntries(ctx, db.Collection(database.CollProducts), bson.M{
			"isActive":  bson.M{"$ne": false},
			"isDeleted": bson.M{"$ne": true},
		})
		if err != nil {
			routeLogger(c, route).Error().Err(err).Msg("product query failed")
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		urls := []sitemapURL{{Loc: base + "/", ChangeFreq: "daily"}}
		urls = appendSitemapURLs(urls, base, "categories", categories)
		urls = appendSitemapURLs(urls, base, "products", products)

		body, err := xml.MarshalIndent(sitemapURLSet{
			XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
			URLs:  urls,
		}, "", "  ")
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "sitemap encode failed")
			return
		}
		c.Data(http.StatusOK, "application/xml; charset=utf-8", append([]byte(xml.Header), body...))
	}
}
