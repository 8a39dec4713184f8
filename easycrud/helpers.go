package easycrud

import (
	"github.com/raywall/fast-crud-toolkit/query"
	"github.com/raywall/fast-crud-toolkit/restdb"
)

// Page é o recorte limit/offset resultante de uma paginação por número de página.
type Page struct {
	Number int
	Size   int
	Limit  int
	Offset int
}

// Options devolve as opções de consulta equivalentes à página.
func (p Page) Options() []query.Option {
	return []query.Option{query.Limit(p.Limit), query.Offset(p.Offset)}
}

// Paginate converte página (a partir de 1) e tamanho em limit/offset.
// pageSize é limitado a [1, maxPageSize] e page a no mínimo 1.
func Paginate(page, pageSize, maxPageSize int) Page {
	if maxPageSize < 1 {
		maxPageSize = restdb.DefaultPageSize
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if page < 1 {
		page = 1
	}
	return Page{
		Number: page,
		Size:   pageSize,
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	}
}

// ExtractIDs coleta os valores de column, ignorando registros sem o campo.
func ExtractIDs(records []restdb.Record, column string) []interface{} {
	if column == "" {
		column = DefaultIDColumn
	}
	ids := make([]interface{}, 0, len(records))
	for _, r := range records {
		if v, ok := r[column]; ok && v != nil {
			ids = append(ids, v)
		}
	}
	return ids
}

// Chunk divide os registros em blocos de até size elementos.
func Chunk(records []restdb.Record, size int) [][]restdb.Record {
	if len(records) == 0 {
		return nil
	}
	if size < 1 {
		return [][]restdb.Record{records}
	}
	chunks := make([][]restdb.Record, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, records[start:end])
	}
	return chunks
}
