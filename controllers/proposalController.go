package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/avelkins10/kin-hvac-tool-sub001/database"
	"github.com/avelkins10/kin-hvac-tool-sub001/middlewares"
	"github.com/avelkins10/kin-hvac-tool-sub001/models"
	"github.com/avelkins10/kin-hvac-tool-sub001/utils"
)

type equipmentItemDTO struct {
	Name    string  `json:"name" validate:"required"`
	Tonnage float64 `json:"tonnage"`
	SEER2   float64 `json:"seer2"`
	Price   float64 `json:"price" validate:"gte=0"`
}

type createProposalDTO struct {
	CustomerFirstName string             `json:"customer_first_name" validate:"required"`
	CustomerLastName  string             `json:"customer_last_name" validate:"required"`
	CustomerEmail     string             `json:"customer_email" validate:"required,email"`
	CustomerPhone     string             `json:"customer_phone"`
	Street            string             `json:"street"`
	City              string             `json:"city"`
	State             string             `json:"state" validate:"omitempty,len=2"`
	Zip               string             `json:"zip"`
	SquareFootage     float64            `json:"square_footage" validate:"gte=0"`
	Equipment         []equipmentItemDTO `json:"equipment"`
	SystemPrice       float64            `json:"system_price" validate:"gte=0"`
}

type updateProposalDTO struct {
	CustomerFirstName *string             `json:"customer_first_name"`
	CustomerLastName  *string             `json:"customer_last_name"`
	CustomerEmail     *string             `json:"customer_email"`
	CustomerPhone     *string             `json:"customer_phone"`
	Street            *string             `json:"street"`
	City              *string             `json:"city"`
	State             *string             `json:"state"`
	Zip               *string             `json:"zip"`
	SquareFootage     *float64            `json:"square_footage"`
	Equipment         *[]equipmentItemDTO `json:"equipment"`
	SystemPrice       *float64            `json:"system_price"`
	Status            *string             `json:"status"`
}

// CreateProposal persists a new proposal with the customer, home and
// equipment snapshot the financing flow later builds its payloads from.
func CreateProposal(c *fiber.Ctx) error {
	var dto createProposalDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizeDTO(&dto)

	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "tenant context missing")
	}

	equipment, err := marshalEquipment(dto.Equipment)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid equipment list")
	}

	userID, _ := c.Locals("userID").(string)
	proposal := models.Proposal{
		CustomerFirstName: dto.CustomerFirstName,
		CustomerLastName:  dto.CustomerLastName,
		CustomerEmail:     dto.CustomerEmail,
		CustomerPhone:     dto.CustomerPhone,
		Street:            dto.Street,
		City:              dto.City,
		State:             dto.State,
		Zip:               dto.Zip,
		SquareFootage:     dto.SquareFootage,
		Equipment:         equipment,
		SystemPrice:       utils.Round2(dto.SystemPrice),
		Status:            "draft",
		CreatedBy:         userID,
	}

	if err := tenantDB.Create(&proposal).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not create proposal",
			"error":   err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(proposal)
}

func GetProposals(c *fiber.Ctx) error {
	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "tenant context missing")
	}

	limit := utils.ParseIntDefault(c.Query("limit"), 50)
	offset := utils.ParseIntDefault(c.Query("offset"), 0)

	var proposals []models.Proposal
	q := tenantDB.Order("created_at DESC").Limit(limit).Offset(offset)
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&proposals).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not list proposals",
			"error":   err.Error(),
		})
	}

	return c.JSON(proposals)
}

func GetProposal(c *fiber.Ctx) error {
	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "tenant context missing")
	}

	var proposal models.Proposal
	if err := tenantDB.Where("id = ?", c.Params("id")).First(&proposal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "proposal not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not load proposal",
			"error":   err.Error(),
		})
	}

	return c.JSON(proposal)
}

// UpdateProposal applies a partial update; only fields present in the body
// are written.
func UpdateProposal(c *fiber.Ctx) error {
	var dto updateProposalDTO
	if err := c.BodyParser(&dto); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	utils.NormalizePtrDTO(&dto)

	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "tenant context missing")
	}

	var proposal models.Proposal
	if err := tenantDB.Where("id = ?", c.Params("id")).First(&proposal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "proposal not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not load proposal",
			"error":   err.Error(),
		})
	}

	updates := utils.UpdatesFromPtrDTO(&dto, nil)
	delete(updates, "equipment") // handled below; JSONB needs explicit marshal
	if dto.Equipment != nil {
		equipment, err := marshalEquipment(*dto.Equipment)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid equipment list")
		}
		updates["equipment"] = equipment
	}
	if len(updates) == 0 {
		return c.JSON(proposal)
	}

	if err := tenantDB.Model(&proposal).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not update proposal",
			"error":   err.Error(),
		})
	}

	return c.JSON(proposal)
}

func marshalEquipment(items []equipmentItemDTO) (datatypes.JSON, error) {
	if len(items) == 0 {
		return datatypes.JSON("[]"), nil
	}
	return utils.MarshalJSON(items)
}
