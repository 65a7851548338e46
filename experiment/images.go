package experiment

import "container/list"

// Image3D is an opaque decoded 3D image volume (z, y, x). Its contents are
// not interpreted by this package.
type Image3D struct {
	SizeZ, SizeY, SizeX int
	Data                []byte
}

// ImageLoader is the external image-loading capability (spec.md §6),
// implemented by the repository's image I/O layer and injected into the
// image facade. Every operation may report "no image" for an out-of-range
// request rather than erroring, matching the ImageOutOfRange error kind
// (spec.md §7), which is recovered silently.
type ImageLoader interface {
	Channels() []string
	// LoadImage3D decodes the 3D array for (t, channel), or returns
	// (nil, false) if nothing is available there.
	LoadImage3D(t int, channel string) (*Image3D, bool)
	// ImageSize returns (z, y, x), or false if unknown (no image loaded yet).
	ImageSize() (z, y, x int, ok bool)
	FirstTimePointNumber() (int, bool)
	LastTimePointNumber() (int, bool)
	Copy() ImageLoader
	// Uncached returns a view over the same underlying images with no
	// caching layer, for callers that want to manage their own memory
	// (e.g. streaming an entire movie without evicting hot positions).
	Uncached() ImageLoader
	// SerializeToConfig returns the two strings an on-disk config needs to
	// reconstruct this loader: a container path and a filename pattern.
	SerializeToConfig() (containerPath, pattern string)
}

const imageCacheSize = 5

type imageCacheKey struct {
	t       int
	channel string
}

// imageFacade wraps an ImageLoader with a per-time-point integer XYZ offset
// and a bounded cache of the last few decoded volumes (spec.md §4.7, §5).
// Grounded on the small-LRU idiom (container/list + map) rather than any
// pack dependency, since none of the example repos' stacks supply a generic
// LRU cache suited to 3D array payloads without pulling in an unrelated
// cloud SDK — see DESIGN.md.
type imageFacade struct {
	loader ImageLoader

	offsets map[int][3]int // t -> (x, y, z) offset

	cacheOrder *list.List // front = most recently used
	cacheIndex map[imageCacheKey]*list.Element
	cacheData  map[imageCacheKey]*Image3D
}

func newImageFacade() *imageFacade {
	return &imageFacade{
		offsets:    make(map[int][3]int),
		cacheOrder: list.New(),
		cacheIndex: make(map[imageCacheKey]*list.Element),
		cacheData:  make(map[imageCacheKey]*Image3D),
	}
}

// SetLoader replaces the image loader, dropping the cache and any offsets
// (the caller owns releasing the old loader's resources).
func (f *imageFacade) SetLoader(loader ImageLoader) {
	f.loader = loader
	f.offsets = make(map[int][3]int)
	f.cacheOrder.Init()
	f.cacheIndex = make(map[imageCacheKey]*list.Element)
	f.cacheData = make(map[imageCacheKey]*Image3D)
}

// SetOffset records the integer XYZ offset in effect at time point t.
func (f *imageFacade) SetOffset(t int, x, y, z int) {
	f.offsets[t] = [3]int{x, y, z}
}

// Offset returns the offset at time point t, or the zero offset if unset.
func (f *imageFacade) Offset(t int) (x, y, z int) {
	o := f.offsets[t]
	return o[0], o[1], o[2]
}

// Image loads the 3D array for (t, channel), consulting and updating the
// bounded cache.
func (f *imageFacade) Image(t int, channel string) (*Image3D, bool) {
	if f.loader == nil {
		return nil, false
	}
	key := imageCacheKey{t: t, channel: channel}
	if el, ok := f.cacheIndex[key]; ok {
		f.cacheOrder.MoveToFront(el)
		return f.cacheData[key], true
	}

	img, ok := f.loader.LoadImage3D(t, channel)
	if !ok {
		return nil, false
	}

	el := f.cacheOrder.PushFront(key)
	f.cacheIndex[key] = el
	f.cacheData[key] = img
	if f.cacheOrder.Len() > imageCacheSize {
		oldest := f.cacheOrder.Back()
		oldestKey := oldest.Value.(imageCacheKey)
		f.cacheOrder.Remove(oldest)
		delete(f.cacheIndex, oldestKey)
		delete(f.cacheData, oldestKey)
	}
	return img, true
}

// IsInsideImage reports whether p, expanded by the given margins, still
// falls within the loaded image bounds at p's time point. ok is false, and
// inside is then meaningless, when no image loader is attached or the
// loader does not know its image size.
func (f *imageFacade) IsInsideImage(t int, x, y, z float64, marginXY, marginZ float64) (inside bool, ok bool) {
	if f.loader == nil {
		return false, false
	}
	sz, sy, sx, ok := f.loader.ImageSize()
	if !ok {
		return false, false
	}
	ox, oy, oz := f.Offset(t)
	lx, ly, lz := x-float64(ox), y-float64(oy), z-float64(oz)

	inside = lx >= -marginXY && lx < float64(sx)+marginXY &&
		ly >= -marginXY && ly < float64(sy)+marginXY &&
		lz >= -marginZ && lz < float64(sz)+marginZ
	return inside, true
}

// HasLoader reports whether an ImageLoader has been attached.
func (f *imageFacade) HasLoader() bool { return f.loader != nil }

// FirstTimePointNumber and LastTimePointNumber forward to the loader, if any.
func (f *imageFacade) FirstTimePointNumber() (int, bool) {
	if f.loader == nil {
		return 0, false
	}
	return f.loader.FirstTimePointNumber()
}

func (f *imageFacade) LastTimePointNumber() (int, bool) {
	if f.loader == nil {
		return 0, false
	}
	return f.loader.LastTimePointNumber()
}

// Copy returns a deep-enough copy: a fresh cache (so the two facades never
// evict each other's entries) sharing the same underlying loader capability
// via its own Copy, plus a copy of the per-time-point offsets.
func (f *imageFacade) Copy() *imageFacade {
	out := newImageFacade()
	if f.loader != nil {
		out.loader = f.loader.Copy()
	}
	for t, o := range f.offsets {
		out.offsets[t] = o
	}
	return out
}
