package domain

type fakeView struct {
	traffic []Traffic
	housing []Housing
}

func (v fakeView) ListTraffic() []Traffic { return v.traffic }
func (v fakeView) ListHousing() []Housing { return v.housing }

func (v fakeView) FindTraffic(id string) (Traffic, bool) {
	for _, t := range v.traffic {
		if t.ID == id {
			return t, true
		}
	}
	return Traffic{}, false
}

func (v fakeView) FindHousing(id string) (Housing, bool) {
	for _, h := range v.housing {
		if h.ID == id {
			return h, true
		}
	}
	return Housing{}, false
}

func (v fakeView) ScanHousing(match func(Housing) bool) []Housing {
	var out []Housing
	for _, h := range v.housing {
		if match(h) {
			out = append(out, h)
		}
	}
	return out
}
