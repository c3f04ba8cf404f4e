package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"b2bmarket/internal/ids"
	"b2bmarket/internal/models"
)

const maxImageSize = 5 << 20

var allowedImageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

/*
=======================
  INPUT STRUCT
=======================
*/

type MultipartProductInput struct {
	Name             string
	NameSet          bool
	Slug             string
	SlugSet          bool
	CategoryID       int64
	CategoryIDSet    bool
	SubcategoryID    int64
	SubcategoryIDSet bool
	Description      string
	DescriptionSet   bool
	Measurement      string
	MeasurementSet   bool
	MinQty           int
	MinQtySet        bool
	PriceMin         float64
	PriceMinSet      bool
	PriceMax         float64
	PriceMaxSet      bool
	Tags             []string
	TagsSet          bool
	IsActive         bool
	IsActiveSet      bool
	RemoveImage      bool
	Image            *multipart.FileHeader
}

/*
=======================
  PARSER
=======================
*/

// parseMultipartProductRequest reads the product form. The image is only
// validated here; saveImage writes it once the rest of the request is accepted.
func parseMultipartProductRequest(c *gin.Context) (MultipartProductInput, error) {
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		return MultipartProductInput{}, fmt.Errorf("invalid multipart form: %w", err)
	}

	input := MultipartProductInput{}

	// ---- STRING FIELDS ----

	if value, ok := lastPostForm(c, "name"); ok {
		input.Name = strings.TrimSpace(value)
		input.NameSet = true
	}
	if value, ok := lastPostForm(c, "slug"); ok {
		input.Slug = strings.TrimSpace(value)
		input.SlugSet = true
	}
	if value, ok := lastPostForm(c, "description"); ok {
		input.Description = strings.TrimSpace(value)
		input.DescriptionSet = true
	}
	if value, ok := lastPostForm(c, "measurement"); ok {
		input.Measurement = strings.TrimSpace(value)
		input.MeasurementSet = true
	}

	// ---- NUMBER FIELDS ----

	var err error
	if value, ok := lastPostForm(c, "categoryId"); ok {
		if input.CategoryID, err = strconv.ParseInt(strings.TrimSpace(value), 10, 64); err != nil || input.CategoryID < 1 {
			return MultipartProductInput{}, fmt.Errorf("categoryId must be a positive integer")
		}
		input.CategoryIDSet = true
	}
	if value, ok := lastPostForm(c, "subcategoryId"); ok {
		if input.SubcategoryID, err = strconv.ParseInt(strings.TrimSpace(value), 10, 64); err != nil || input.SubcategoryID < 1 {
			return MultipartProductInput{}, fmt.Errorf("subcategoryId must be a positive integer")
		}
		input.SubcategoryIDSet = true
	}
	if value, ok := lastPostForm(c, "minQty"); ok {
		if input.MinQty, err = strconv.Atoi(strings.TrimSpace(value)); err != nil || input.MinQty < 0 {
			return MultipartProductInput{}, fmt.Errorf("minQty must be a non-negative integer")
		}
		input.MinQtySet = true
	}
	if value, ok := lastPostForm(c, "priceMin"); ok {
		if input.PriceMin, err = strconv.ParseFloat(strings.TrimSpace(value), 64); err != nil {
			return MultipartProductInput{}, fmt.Errorf("priceMin must be a number")
		}
		input.PriceMinSet = true
	}
	if value, ok := lastPostForm(c, "priceMax"); ok {
		if input.PriceMax, err = strconv.ParseFloat(strings.TrimSpace(value), 64); err != nil {
			return MultipartProductInput{}, fmt.Errorf("priceMax must be a number")
		}
		input.PriceMaxSet = true
	}

	// ---- BOOL FIELDS ----

	if value, ok := lastPostForm(c, "isActive"); ok {
		if input.IsActive, err = parseBoolValue(value); err != nil {
			return MultipartProductInput{}, fmt.Errorf("isActive must be a boolean")
		}
		input.IsActiveSet = true
	}
	if value, ok := lastPostForm(c, "removeImage"); ok {
		if input.RemoveImage, err = parseBoolValue(value); err != nil {
			return MultipartProductInput{}, fmt.Errorf("removeImage must be a boolean")
		}
	}

	// ---- TAGS ----
	// tags[]=a&tags[]=b, repeated tags=a, or a single comma separated value.

	tags := append(c.PostFormArray("tags[]"), c.PostFormArray("tags")...)
	if len(tags) > 0 {
		input.Tags = normalizeTags(tags)
		input.TagsSet = true
	}

	// ---- IMAGE FILE ----

	file, err := c.FormFile("image")
	if err == nil {
		if err := validateImage(file); err != nil {
			return MultipartProductInput{}, err
		}
		input.Image = file
	} else if !errors.Is(err, http.ErrMissingFile) && !strings.Contains(err.Error(), "no such file") {
		return MultipartProductInput{}, err
	}

	return input, nil
}

func lastPostForm(c *gin.Context, key string) (string, bool) {
	values, ok := c.GetPostFormArray(key)
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[len(values)-1], true
}

func normalizeTags(values []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, raw := range values {
		for _, tag := range models.SplitTags(raw) {
			key := strings.ToLower(tag)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}

/*
=======================
  IMAGE SAVE
=======================
*/

func validateImage(file *multipart.FileHeader) error {
	extension := strings.ToLower(filepath.Ext(file.Filename))
	if extension == "" {
		return fmt.Errorf("image file extension is required")
	}
	if _, ok := allowedImageExtensions[extension]; !ok {
		return fmt.Errorf("unsupported image type: %s", extension)
	}
	if file.Size > maxImageSize {
		return fmt.Errorf("image file too large (max 5MB)")
	}
	return nil
}

// saveImage stores the upload under <uploadDir>/products and returns the
// public path written to the product document.
func saveImage(uploadDir string, file *multipart.FileHeader) (string, error) {
	filename, err := ids.UploadNameFor(time.Now(), file.Filename)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(uploadDir, "products")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	fullPath := filepath.Join(dir, filename)
	out, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer out.Close()

	in, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer in.Close()

	if _, err := io.Copy(out, io.LimitReader(in, maxImageSize+1)); err != nil {
		_ = os.Remove(fullPath)
		return "", fmt.Errorf("write upload: %w", err)
	}

	return filepath.ToSlash(filepath.Join(uploadsPrefix, "products", filename)), nil
}

/*
=======================
  HELPERS
=======================
*/

func parseBoolValue(value string) (bool, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "on" {
		return true, nil
	}
	return strconv.ParseBool(value)
}
