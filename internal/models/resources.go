package models

import "math"

// Resources is a server allocation snapshot: RAM and disk in MB, CPU in percent.
type Resources struct {
	RAM  int64 `gorm:"column:ram;not null;default:0" json:"ram"`
	CPU  int64 `gorm:"column:cpu;not null;default:0" json:"cpu"`
	Disk int64 `gorm:"column:disk;not null;default:0" json:"disk"`
}

// Scale multiplies each resource by its factor, rounding to the nearest unit.
func (r Resources) Scale(ram, cpu, disk float64) Resources {
	return Resources{
		RAM:  scale(r.RAM, ram),
		CPU:  scale(r.CPU, cpu),
		Disk: scale(r.Disk, disk),
	}
}

func (r Resources) Sub(o Resources) Resources {
	return Resources{RAM: r.RAM - o.RAM, CPU: r.CPU - o.CPU, Disk: r.Disk - o.Disk}
}

func (r Resources) Add(o Resources) Resources {
	return Resources{RAM: r.RAM + o.RAM, CPU: r.CPU + o.CPU, Disk: r.Disk + o.Disk}
}

func scale(v int64, factor float64) int64 {
	if factor == 1 {
		return v
	}
	return int64(math.Round(float64(v) * factor))
}
