package handler

import (
	"go-loyalty-store/internal/repository"
	"go-loyalty-store/internal/service"

	"github.com/gofiber/fiber/v2"
)

type CatalogHandler struct {
	catalogService service.CatalogService
}

func NewCatalogHandler(catalogService service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// GetProducts lists the catalog
// GET /api/products?category_id=&in_stock=&search=
func (h *CatalogHandler) GetProducts(c *fiber.Ctx) error {
	categoryID, err := uuidQuery(c, "category_id")
	if err != nil {
		return fail(c, err)
	}

	products, err := h.catalogService.GetProducts(c.UserContext(), repository.ProductFilter{
		CategoryID:  categoryID,
		InStockOnly: c.QueryBool("in_stock"),
		Search:      c.Query("search"),
	})
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", products)
}

// GetProduct returns one product
// GET /api/products/:id
func (h *CatalogHandler) GetProduct(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return fail(c, err)
	}

	product, err := h.catalogService.GetProduct(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", product)
}

// CreateProduct adds a product to the catalog
// POST /api/admin/products
func (h *CatalogHandler) CreateProduct(c *fiber.Ctx) error {
	var req service.ProductRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, badBody())
	}

	product, err := h.catalogService.CreateProduct(c.UserContext(), &req, actor(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusCreated, "Product created successfully", product)
}

// UpdateProduct replaces a product's editable fields
// PUT /api/admin/products/:id
func (h *CatalogHandler) UpdateProduct(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return fail(c, err)
	}

	var req service.ProductRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, badBody())
	}

	product, err := h.catalogService.UpdateProduct(c.UserContext(), id, &req, actor(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "Product updated successfully", product)
}

// GetCategories
// GET /api/categories
func (h *CatalogHandler) GetCategories(c *fiber.Ctx) error {
	categories, err := h.catalogService.GetCategories(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", categories)
}

// CreateCategory
// POST /api/admin/categories
func (h *CatalogHandler) CreateCategory(c *fiber.Ctx) error {
	var req service.CategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, badBody())
	}

	category, err := h.catalogService.CreateCategory(c.UserContext(), &req, actor(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusCreated, "Category created successfully", category)
}

// DeleteCategory removes a category together with its products
// DELETE /api/admin/categories/:id
func (h *CatalogHandler) DeleteCategory(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return fail(c, err)
	}

	deleted, err := h.catalogService.DeleteCategory(c.UserContext(), id, actor(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "Category deleted successfully", fiber.Map{"deleted_products": deleted})
}
