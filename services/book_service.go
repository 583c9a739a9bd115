package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"libraryhub_go/middleware"
	"libraryhub_go/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BookService manages the catalog
type BookService struct {
	db    *gorm.DB
	rdb   *redis.Client
	rules *Rules
}

// NewBookService creates the service. rdb may be nil.
func NewBookService(db *gorm.DB, rdb *redis.Client, rules *Rules) *BookService {
	return &BookService{db: db, rdb: rdb, rules: rules}
}

// CreateBookRequest adds a title to the catalog
type CreateBookRequest struct {
	Title           string `json:"title" binding:"required,max=200"`
	Author          string `json:"author" binding:"required,max=100"`
	ISBN            string `json:"isbn" binding:"required,isbn"`
	Category        string `json:"category" binding:"required,max=50"`
	Quantity        *int   `json:"quantity" binding:"required,min=0"`
	Description     string `json:"description" binding:"omitempty,max=5000"`
	CoverImage      string `json:"coverImage" binding:"omitempty,max=255"`
	PublicationYear int    `json:"publicationYear" binding:"omitempty,min=0,max=3000"`
}

// UpdateBookRequest changes the given fields only
type UpdateBookRequest struct {
	Title           *string `json:"title" binding:"omitempty,min=1,max=200"`
	Author          *string `json:"author" binding:"omitempty,min=1,max=100"`
	ISBN            *string `json:"isbn" binding:"omitempty,isbn"`
	Category        *string `json:"category" binding:"omitempty,min=1,max=50"`
	Quantity        *int    `json:"quantity" binding:"omitempty,min=0"`
	Description     *string `json:"description" binding:"omitempty,max=5000"`
	CoverImage      *string `json:"coverImage" binding:"omitempty,max=255"`
	PublicationYear *int    `json:"publicationYear" binding:"omitempty,min=0,max=3000"`
}

// BookFilter narrows ListBooks
type BookFilter struct {
	Category string
	// Search matches title or author.
	Search string
}

func normalizeISBN(isbn string) string {
	return strings.TrimSpace(isbn)
}

// CreateBook stores a new title with every copy on the shelf
func (bs *BookService) CreateBook(ctx context.Context, req *CreateBookRequest) (*models.Book, error) {
	db := bs.db.WithContext(ctx)
	isbn := normalizeISBN(req.ISBN)

	var count int64
	if err := db.Model(&models.Book{}).Where("isbn = ?", isbn).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check isbn: %w", err)
	}
	if count > 0 {
		return nil, ErrDuplicateISBN
	}

	book := models.Book{
		Title:           strings.TrimSpace(req.Title),
		Author:          strings.TrimSpace(req.Author),
		ISBN:            isbn,
		Category:        strings.TrimSpace(req.Category),
		Quantity:        *req.Quantity,
		Available:       *req.Quantity,
		Description:     req.Description,
		CoverImage:      req.CoverImage,
		PublicationYear: req.PublicationYear,
	}
	if err := db.Create(&book).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateISBN
		}
		return nil, fmt.Errorf("failed to create book: %w", err)
	}

	bs.catalogChanged(ctx, "book_created", &book)
	return &book, nil
}

// ListBooks returns the catalog, newest first
func (bs *BookService) ListBooks(ctx context.Context, filter BookFilter) ([]models.Book, error) {
	query := bs.db.WithContext(ctx).Model(&models.Book{})
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + s + "%"
		query = query.Where("title LIKE ? OR author LIKE ?", like, like)
	}

	books := make([]models.Book, 0)
	if err := query.Order("created_at DESC").Find(&books).Error; err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// GetBook loads one book
func (bs *BookService) GetBook(ctx context.Context, id string) (*models.Book, error) {
	return findBookByID(bs.db.WithContext(ctx), id)
}

// UpdateBook applies req. A quantity change moves available by the same
// amount and fails when it would take more copies than are on the shelf.
func (bs *BookService) UpdateBook(ctx context.Context, id string, req *UpdateBookRequest) (*models.Book, error) {
	var book *models.Book
	err := bs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := findBookByID(tx, id)
		if err != nil {
			return err
		}

		updates := make(map[string]interface{})
		if req.Title != nil {
			updates["title"] = strings.TrimSpace(*req.Title)
		}
		if req.Author != nil {
			updates["author"] = strings.TrimSpace(*req.Author)
		}
		if req.Category != nil {
			updates["category"] = strings.TrimSpace(*req.Category)
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if req.CoverImage != nil {
			updates["cover_image"] = *req.CoverImage
		}
		if req.PublicationYear != nil {
			updates["publication_year"] = *req.PublicationYear
		}
		if req.ISBN != nil {
			isbn := normalizeISBN(*req.ISBN)
			if isbn != current.ISBN {
				var count int64
				if err := tx.Model(&models.Book{}).Where("isbn = ? AND id <> ?", isbn, id).Count(&count).Error; err != nil {
					return fmt.Errorf("check isbn: %w", err)
				}
				if count > 0 {
					return ErrDuplicateISBN
				}
				updates["isbn"] = isbn
			}
		}

		query := tx.Model(&models.Book{}).Where("id = ?", id)
		if req.Quantity != nil && *req.Quantity != current.Quantity {
			delta := *req.Quantity - current.Quantity
			updates["quantity"] = *req.Quantity
			updates["available"] = gorm.Expr("available + ?", delta)
			query = query.Where("quantity = ? AND available + ? >= 0", current.Quantity, delta)
		}

		if len(updates) > 0 {
			res := query.Updates(updates)
			if res.Error != nil {
				if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
					return ErrDuplicateISBN
				}
				return fmt.Errorf("update book: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return Conflictf("Quantity cannot drop below the %d copies on loan", current.CurrentlyBorrowed)
			}
		}

		book, err = findBookByID(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	bs.catalogChanged(ctx, "book_updated", book)
	return book, nil
}

// SetCover stores the cover image URL and returns the URL it replaced
func (bs *BookService) SetCover(ctx context.Context, id, url string) (*models.Book, string, error) {
	db := bs.db.WithContext(ctx)
	book, err := findBookByID(db, id)
	if err != nil {
		return nil, "", err
	}
	previous := book.CoverImage
	if err := db.Model(book).Update("cover_image", url).Error; err != nil {
		return nil, "", fmt.Errorf("set cover: %w", err)
	}
	book.CoverImage = url
	bs.catalogChanged(ctx, "book_updated", book)
	return book, previous, nil
}

// DeleteBook removes a title. Loans that reference it keep their book id.
func (bs *BookService) DeleteBook(ctx context.Context, id string) error {
	res := bs.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Book{})
	if res.Error != nil {
		return fmt.Errorf("delete book: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrBookNotFound
	}

	bs.catalogChanged(ctx, "book_deleted", &models.Book{ID: id})
	return nil
}

// RecomputeTrending refreshes the trending flag of every book
func (bs *BookService) RecomputeTrending(ctx context.Context) (int64, error) {
	res := bs.db.WithContext(ctx).
		Model(&models.Book{}).
		Where("1 = 1").
		UpdateColumn("trending", gorm.Expr("(total_borrows > ? AND currently_borrowed > ?)",
			bs.rules.Trending.TotalBorrowsAbove, bs.rules.Trending.CurrentlyBorrowedAbove))
	if res.Error != nil {
		return 0, fmt.Errorf("recompute trending: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// catalogChanged drops cached recommendations and records the event
func (bs *BookService) catalogChanged(ctx context.Context, event string, book *models.Book) {
	recommendationCache(bs.rdb).invalidateMatching(ctx, recommendationKey("*"))
	publishEvent(ctx, bs.rdb, event, map[string]interface{}{
		"book_id": book.ID,
		"isbn":    book.ISBN,
	})
	middleware.InfoLogger(event, zap.String("book_id", book.ID), zap.String("isbn", book.ISBN))
}
