package domain

// Platform — маркетплейс, с которого пришла вещь.
// Используется как metadata-фильтр при векторном поиске.
type Platform string

const (
	PlatformDepop   Platform = "depop"
	PlatformGrailed Platform = "grailed"
	PlatformVinted  Platform = "vinted"
	PlatformModaics Platform = "modaics"
)

// Known сообщает, поддерживается ли платформа.
func (p Platform) Known() bool {
	switch p {
	case PlatformDepop, PlatformGrailed, PlatformVinted, PlatformModaics:
		return true
	default:
		return false
	}
}

func (p Platform) String() string {
	return string(p)
}
