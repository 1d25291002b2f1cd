package sensor

// OmniVision OV5647, 2-lane MIPI, 800x640 RAW8 binned mode
var ov5647 = model{
	name:    "ov5647",
	pid:     0x5647,
	addr:    0x36,
	idHi:    0x300A,
	idLo:    0x300B,
	width:   800,
	height:  640,
	lanes:   2,
	bitrate: 200,
	bayer:   BayerGBRG,
	init: []regVal{
		{0x0103, 0x01}, // soft reset
		{0x0100, 0x00}, // standby
		{0x3034, 0x18}, // 8-bit MIPI
		{0x3035, 0x21},
		{0x3036, 0x46},
		{0x303c, 0x11},
		{0x3106, 0xf5},
		{0x3821, 0x07}, // horizontal binning
		{0x3820, 0x41},
		{0x3827, 0xec},
		{0x370c, 0x0f},
		{0x3612, 0x59},
		{0x3618, 0x00},
		{0x5000, 0x06},
		{0x5003, 0x08},
		{0x5a00, 0x08},
		{0x3808, 0x03}, // output width 800
		{0x3809, 0x20},
		{0x380a, 0x02}, // output height 640
		{0x380b, 0x80},
		{0x4800, 0x34}, // MIPI clock gating
		{0x4837, 0x28},
		{0x3503, 0x00}, // auto exposure on
	},
	streamOn: []regVal{{0x4800, 0x04}, {0x4202, 0x00}, {0x0100, 0x01}},
	streamOf: []regVal{{0x4800, 0x25}, {0x4202, 0x0f}, {0x0100, 0x00}},
	brightness: func(level int) []regVal {
		// AEC target window, centred on 0x40 at the default level
		target := 0x18 + level*8
		return []regVal{
			{0x3a0f, uint8(target + 8)},
			{0x3a10, uint8(target - 8)},
			{0x3a1b, uint8(target + 8)},
			{0x3a1e, uint8(target - 8)},
		}
	},
}

func newOV5647(opts Options) (Driver, error) {
	return newHardware(ov5647, opts)
}
