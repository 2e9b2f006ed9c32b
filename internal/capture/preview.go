package capture

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

const previewScheme = "blob:"

// Previews guarda arquivos locais acessíveis por uma URL temporária,
// no mesmo papel das object URLs do navegador.
type Previews struct {
	mu    sync.Mutex
	items map[string]File
}

// NewPreviews cria o registro vazio.
func NewPreviews() *Previews {
	return &Previews{items: make(map[string]File)}
}

// Create registra o arquivo e devolve a URL de pré-visualização.
func (p *Previews) Create(f File) string {
	url := previewScheme + uuid.NewString()
	f.PreviewURL = url

	p.mu.Lock()
	p.items[url] = f
	p.mu.Unlock()
	return url
}

// Get devolve o arquivo de uma URL ainda válida.
func (p *Previews) Get(url string) (File, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.items[url]
	return f, ok
}

// Revoke invalida a URL. URLs desconhecidas são ignoradas.
func (p *Previews) Revoke(url string) {
	if !strings.HasPrefix(url, previewScheme) {
		return
	}
	p.mu.Lock()
	delete(p.items, url)
	p.mu.Unlock()
}

// RevokeAll invalida todas as URLs.
func (p *Previews) RevokeAll() {
	p.mu.Lock()
	p.items = make(map[string]File)
	p.mu.Unlock()
}

// Len informa quantas URLs estão ativas.
func (p *Previews) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}
