package httpapi

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"alemkitap.org/internal/audit"
	"alemkitap.org/internal/catalog"
	"alemkitap.org/internal/orders"
)

// maxUploadBytes ограничивает multipart загрузку книги (PDF + обложка).
const maxUploadBytes = 64 << 20

func (a *API) handleAdminBooksCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.adminListBooks(w, r)
	case http.MethodPost:
		a.adminAddBook(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleAdminBookResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/admin/books/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	a.adminEditBook(w, r, id)
}

// adminBookView дополняет публичное представление локатором файла.
type adminBookView struct {
	*catalog.Book
	FileLocator string `json:"file_locator"`
}

func (a *API) adminListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := a.deps.Books.List(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	items := make([]adminBookView, 0, len(books))
	for _, b := range books {
		items = append(items, adminBookView{Book: b, FileLocator: b.FilePath})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) adminAddBook(w http.ResponseWriter, r *http.Request) {
	book, file, cover, ok := a.parseBookForm(w, r)
	if !ok {
		return
	}
	if file == nil {
		writeError(w, r, http.StatusBadRequest, "book file is required")
		return
	}

	locator, err := a.saveUpload("books", file)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "file upload failed")
		return
	}
	book.FilePath = locator

	if cover != nil {
		coverLoc, err := a.saveUpload("covers", cover)
		if err != nil {
			_ = a.deps.Blobs.Remove(locator)
			writeError(w, r, http.StatusInternalServerError, "cover upload failed")
			return
		}
		book.CoverPath = coverLoc
	}

	if err := a.deps.Books.Create(r.Context(), book); err != nil {
		_ = a.deps.Blobs.Remove(book.FilePath)
		_ = a.deps.Blobs.Remove(book.CoverPath)
		if errors.Is(err, catalog.ErrInvalidInput) {
			writeError(w, r, http.StatusBadRequest, "invalid book")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	_ = audit.LogEvent(r.Context(), "admin.book.created", map[string]any{
		"book_id": book.ID,
		"title":   book.Title,
	})

	w.Header().Set("Location", "/v1/books/"+book.ID)
	writeJSON(w, http.StatusCreated, adminBookView{Book: book, FileLocator: book.FilePath})
}

// adminEditBook обновляет карточку; новые файлы замещают старые блобы,
// прежние удаляются после успешной записи.
func (a *API) adminEditBook(w http.ResponseWriter, r *http.Request, id string) {
	existing, err := a.deps.Books.Find(r.Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "book not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	book, file, cover, ok := a.parseBookForm(w, r)
	if !ok {
		return
	}
	book.ID = existing.ID
	book.FilePath = existing.FilePath
	book.CoverPath = existing.CoverPath
	book.CreatedAt = existing.CreatedAt

	var oldFile, oldCover string
	if file != nil {
		locator, err := a.saveUpload("books", file)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "file upload failed")
			return
		}
		oldFile = existing.FilePath
		book.FilePath = locator
	}
	if cover != nil {
		locator, err := a.saveUpload("covers", cover)
		if err != nil {
			if file != nil {
				_ = a.deps.Blobs.Remove(book.FilePath)
			}
			writeError(w, r, http.StatusInternalServerError, "cover upload failed")
			return
		}
		oldCover = existing.CoverPath
		book.CoverPath = locator
	}

	if err := a.deps.Books.Update(r.Context(), book); err != nil {
		if file != nil {
			_ = a.deps.Blobs.Remove(book.FilePath)
		}
		if cover != nil {
			_ = a.deps.Blobs.Remove(book.CoverPath)
		}
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "book not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	if oldFile != "" {
		_ = a.deps.Blobs.Remove(oldFile)
	}
	if oldCover != "" {
		_ = a.deps.Blobs.Remove(oldCover)
	}

	_ = audit.LogEvent(r.Context(), "admin.book.updated", map[string]any{
		"book_id":       book.ID,
		"file_replaced": file != nil,
	})

	writeJSON(w, http.StatusOK, adminBookView{Book: book, FileLocator: book.FilePath})
}

// parseBookForm читает multipart поля карточки книги и открытые файлы.
// Закрытие файлов — на вызывающем через saveUpload.
func (a *API) parseBookForm(w http.ResponseWriter, r *http.Request) (*catalog.Book, *multipart.FileHeader, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, "multipart form expected")
		return nil, nil, nil, false
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		writeError(w, r, http.StatusBadRequest, "title is required")
		return nil, nil, nil, false
	}
	priceRaw := strings.TrimSpace(r.FormValue("price_minor"))
	price, err := strconv.ParseInt(priceRaw, 10, 64)
	if err != nil || price < 0 {
		writeError(w, r, http.StatusBadRequest, "price_minor must be a non-negative integer")
		return nil, nil, nil, false
	}

	book := &catalog.Book{
		Title:       title,
		Author:      strings.TrimSpace(r.FormValue("author")),
		Description: strings.TrimSpace(r.FormValue("description")),
		PriceMinor:  price,
	}

	var file, cover *multipart.FileHeader
	if headers := r.MultipartForm.File["file"]; len(headers) > 0 {
		file = headers[0]
	}
	if headers := r.MultipartForm.File["cover"]; len(headers) > 0 {
		cover = headers[0]
	}
	return book, file, cover, true
}

func (a *API) saveUpload(subdir string, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	return a.deps.Blobs.Save(subdir, fh.Filename, f)
}

type physicalBookRequest struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
	PriceMinor  int64  `json:"price_minor"`
	CoverPath   string `json:"cover_path"`
	Stock       int    `json:"stock"`
}

func (a *API) handleAdminPhysicalBooks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req physicalBookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.PriceMinor < 0 {
		writeError(w, r, http.StatusBadRequest, "price_minor must be a non-negative integer")
		return
	}

	book := &catalog.PhysicalBook{
		Title:       strings.TrimSpace(req.Title),
		Author:      strings.TrimSpace(req.Author),
		Description: strings.TrimSpace(req.Description),
		PriceMinor:  req.PriceMinor,
		CoverPath:   strings.TrimSpace(req.CoverPath),
		Stock:       req.Stock,
	}
	if err := a.deps.Physical.Create(r.Context(), book); err != nil {
		if errors.Is(err, catalog.ErrInvalidInput) {
			writeError(w, r, http.StatusBadRequest, "invalid physical book")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	_ = audit.LogEvent(r.Context(), "admin.physical_book.created", map[string]any{
		"physical_book_id": book.ID,
		"title":            book.Title,
		"stock":            strconv.Itoa(book.Stock),
	})

	writeJSON(w, http.StatusCreated, book)
}

// --- заказы ---

type orderStatusRequest struct {
	Status string `json:"status"`
}

func (a *API) handleAdminOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	list, err := a.deps.Orders.ListAll(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if list == nil {
		list = []*orders.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": list})
}

func (a *API) handleAdminOrderResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/admin/orders/")
	id, ok := strings.CutSuffix(path, "/status")
	if !ok || id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req orderStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	order, err := a.deps.Orders.Transition(r.Context(), id, orders.Status(strings.TrimSpace(req.Status)))
	if err != nil {
		handleOrderError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "admin.order.status", map[string]any{
		"order_id": order.ID,
		"status":   string(order.Status),
	})

	writeJSON(w, http.StatusOK, order)
}
