// Package ids выдаёт идентификаторы строк хранилища.
package ids

import "github.com/oklog/ulid/v2"

// New возвращает ULID; лексикографический порядок идентификаторов совпадает
// с порядком их создания, чем пользуются выборки без order by created_at.
func New() string {
	return ulid.Make().String()
}
