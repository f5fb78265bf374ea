package api

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// listProducts handles catalog listing with optional category/search
// filters.
func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.products.List(c.Request.Context(), c.Query("category"), c.Query("search"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

// getProduct handles a single catalog read
func (h *Handler) getProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	product, err := h.products.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

type productForm struct {
	Name        string  `json:"name" form:"name"`
	Description string  `json:"description" form:"description"`
	Price       float64 `json:"price" form:"price"`
	Stock       int     `json:"stock" form:"stock"`
	Category    string  `json:"category" form:"category"`
	ImageURL    string  `json:"image_url" form:"image_url"`
}

// createProduct handles product creation with an optional image file
func (h *Handler) createProduct(c *gin.Context) {
	var form productForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid product payload: " + err.Error()})
		return
	}

	if file, err := c.FormFile("image"); err == nil {
		url, err := h.saveImage(c, file)
		if err != nil {
			respondError(c, err)
			return
		}
		form.ImageURL = url
	}

	product := &models.Product{
		Name:        form.Name,
		Description: form.Description,
		Price:       form.Price,
		Stock:       form.Stock,
		Category:    form.Category,
		ImageURL:    form.ImageURL,
	}
	if err := h.products.Create(c.Request.Context(), product); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

// updateProduct handles a partial product update with an optional image
// file. Only fields present in the request are touched.
func (h *Handler) updateProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	update, err := h.bindProductUpdate(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid product payload: " + err.Error()})
		return
	}

	if file, err := c.FormFile("image"); err == nil {
		url, err := h.saveImage(c, file)
		if err != nil {
			respondError(c, err)
			return
		}
		update.ImageURL = &url
	}

	product, err := h.products.Update(c.Request.Context(), id, update)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// deleteProduct handles product removal
func (h *Handler) deleteProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.products.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}

// bindProductUpdate reads a partial update from either a JSON body or
// multipart/urlencoded form fields, keeping absent fields nil.
func (h *Handler) bindProductUpdate(c *gin.Context) (service.ProductUpdate, error) {
	var update service.ProductUpdate

	contentType := c.ContentType()
	if contentType == "application/json" {
		var body struct {
			Name        *string  `json:"name"`
			Description *string  `json:"description"`
			Price       *float64 `json:"price"`
			Stock       *int     `json:"stock"`
			Category    *string  `json:"category"`
			ImageURL    *string  `json:"image_url"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			return update, err
		}
		update.Name = body.Name
		update.Description = body.Description
		update.Price = body.Price
		update.Stock = body.Stock
		update.Category = body.Category
		update.ImageURL = body.ImageURL
		return update, nil
	}

	if v, ok := c.GetPostForm("name"); ok {
		update.Name = &v
	}
	if v, ok := c.GetPostForm("description"); ok {
		update.Description = &v
	}
	if v, ok := c.GetPostForm("price"); ok {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return update, fmt.Errorf("price: %w", err)
		}
		update.Price = &price
	}
	if v, ok := c.GetPostForm("stock"); ok {
		stock, err := strconv.Atoi(v)
		if err != nil {
			return update, fmt.Errorf("stock: %w", err)
		}
		update.Stock = &stock
	}
	if v, ok := c.GetPostForm("category"); ok {
		update.Category = &v
	}
	if v, ok := c.GetPostForm("image_url"); ok {
		update.ImageURL = &v
	}
	return update, nil
}

// saveImage stores an uploaded image under the uploads dir and returns
// its public URL path. Non-image content is rejected.
func (h *Handler) saveImage(c *gin.Context, file *multipart.FileHeader) (string, error) {
	if !strings.HasPrefix(file.Header.Get("Content-Type"), "image/") {
		return "", fmt.Errorf("only image uploads are allowed: %w", models.ErrValidation)
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to prepare upload dir: %w", err)
	}

	name := fmt.Sprintf("image-%d-%s%s",
		time.Now().UnixMilli(), uuid.New().String()[:8], filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, filepath.Join(h.uploadDir, name)); err != nil {
		return "", fmt.Errorf("failed to store upload: %w", err)
	}

	return path.Join(h.uploadBasePath, name), nil
}
