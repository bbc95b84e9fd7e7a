package main

import (
	"image"
	"image/color"
	"log"

	"github.com/faiface/pixel"
	"github.com/faiface/pixel/pixelgl"
	"github.com/faiface/pixel/text"
	"golang.org/x/image/colornames"
	"golang.org/x/image/font/basicfont"

	"github.com/nesforge/coreos/nes"
)

// Display is the host video surface: a pixelgl window presenting the
// PPU's palette-index framebuffer. The nes/jit packages never import
// this one — PPU.Framebuffer is a plain []byte, and everything
// pixel/pixelgl-shaped lives here as an external collaborator.
type Display struct {
	gameRgba  *image.RGBA
	debugRgba *image.RGBA

	window      *pixelgl.Window
	gameMatrix  pixel.Matrix
	debugMatrix pixel.Matrix

	debugAtlas          *text.Atlas
	debugRegText        *text.Text
	debugInstText       *text.Text
	debugControllerText *text.Text

	isDebug bool
}

const (
	nesResW    float64 = 256
	nesResH    float64 = 240
	scale      float64 = 3
	gameW      float64 = nesResW * scale
	gameH      float64 = nesResH * scale
	screenPosX float64 = 600
	screenPosY float64 = 400

	debugResW float64 = 512
	debugResH float64 = gameH
)

// nesPalette is the standard 2C02 64-entry RGB palette, used to translate
// PPU.Framebuffer's palette indices into host pixels.
var nesPalette = [64]color.RGBA{
	{84, 84, 84, 255}, {0, 30, 116, 255}, {8, 16, 144, 255}, {48, 0, 136, 255},
	{68, 0, 100, 255}, {92, 0, 48, 255}, {84, 4, 0, 255}, {60, 24, 0, 255},
	{32, 42, 0, 255}, {8, 58, 0, 255}, {0, 64, 0, 255}, {0, 60, 0, 255},
	{0, 50, 60, 255}, {0, 0, 0, 255}, {0, 0, 0, 255}, {0, 0, 0, 255},
	{152, 150, 152, 255}, {8, 76, 196, 255}, {48, 50, 236, 255}, {92, 30, 228, 255},
	{136, 20, 176, 255}, {160, 20, 100, 255}, {152, 34, 32, 255}, {120, 60, 0, 255},
	{84, 90, 0, 255}, {40, 114, 0, 255}, {8, 124, 0, 255}, {0, 118, 40, 255},
	{0, 102, 120, 255}, {0, 0, 0, 255}, {0, 0, 0, 255}, {0, 0, 0, 255},
	{236, 238, 236, 255}, {76, 154, 236, 255}, {120, 124, 236, 255}, {176, 98, 236, 255},
	{228, 84, 236, 255}, {236, 88, 180, 255}, {236, 106, 100, 255}, {212, 136, 32, 255},
	{160, 170, 0, 255}, {116, 196, 0, 255}, {76, 208, 32, 255}, {56, 204, 108, 255},
	{56, 180, 204, 255}, {60, 60, 60, 255}, {0, 0, 0, 255}, {0, 0, 0, 255},
	{236, 238, 236, 255}, {168, 204, 236, 255}, {188, 188, 236, 255}, {212, 178, 236, 255},
	{236, 174, 236, 255}, {236, 174, 212, 255}, {236, 180, 176, 255}, {228, 196, 144, 255},
	{204, 210, 120, 255}, {180, 222, 120, 255}, {168, 226, 144, 255}, {152, 226, 180, 255},
	{160, 214, 228, 255}, {160, 162, 160, 255}, {0, 0, 0, 255}, {0, 0, 0, 255},
}

func NewDisplay(isDebug bool) *Display {
	rect := image.Rect(0, 0, int(nesResW), int(nesResH))
	gameRgba := image.NewRGBA(rect)

	rect = image.Rect(0, 0, int(debugResW), int(debugResH))
	debugRgba := image.NewRGBA(rect)

	screenW := gameW
	if isDebug {
		screenW += debugResW
	}

	config := pixelgl.WindowConfig{
		Title:    "NES Emulator",
		Bounds:   pixel.R(0, 0, screenW, gameH),
		Position: pixel.V(screenPosX, screenPosY),
		VSync:    true,
	}
	window, err := pixelgl.NewWindow(config)
	if err != nil {
		log.Fatal("unable to create pixelgl window: ", err)
	}

	pic := pixel.PictureDataFromImage(gameRgba)
	gameMatrix := pixel.IM.Moved(pic.Bounds().Center().Scaled(scale))
	gameMatrix = gameMatrix.Scaled(pic.Bounds().Center().Scaled(scale), scale)

	pic = pixel.PictureDataFromImage(debugRgba)
	debugMatrix := pixel.IM.Moved(pic.Bounds().Center().Add(pixel.V(gameW, 0)))

	debugAtlas := text.NewAtlas(basicfont.Face7x13, text.ASCII)
	debugRegText := text.New(pixel.V(gameW+8, gameH-40), debugAtlas)
	debugInstText := text.New(pixel.V(gameW+8, gameH-180), debugAtlas)
	debugControllerText := text.New(pixel.V(gameW+300, gameH-40), debugAtlas)

	return &Display{
		gameRgba:            gameRgba,
		debugRgba:           debugRgba,
		window:              window,
		gameMatrix:          gameMatrix,
		debugMatrix:         debugMatrix,
		debugAtlas:          debugAtlas,
		debugRegText:        debugRegText,
		debugInstText:       debugInstText,
		debugControllerText: debugControllerText,
		isDebug:             isDebug,
	}
}

func (d *Display) Closed() bool { return d.window.Closed() }

// DrawFrame copies the PPU's palette-index framebuffer into the host
// image, translating indices through nesPalette.
func (d *Display) DrawFrame(fb *[256 * 240]byte) {
	for y := 0; y < 240; y++ {
		for x := 0; x < 256; x++ {
			d.gameRgba.SetRGBA(x, 239-y, nesPalette[fb[y*256+x]&0x3F])
		}
	}
}

func (d *Display) WriteRegDebugString(t string) {
	d.debugRegText.Clear()
	d.debugRegText.WriteString(t)
}

func (d *Display) WriteInstDebugString(t string) {
	d.debugInstText.Clear()
	d.debugInstText.WriteString(t)
}

func (d *Display) WriteControllerDebugString(t string) {
	d.debugControllerText.Clear()
	d.debugControllerText.WriteString(t)
}

func (d *Display) UpdateScreen() {
	d.window.Clear(colornames.Black)

	sprite := getSpriteFromImage(d.gameRgba)
	sprite.Draw(d.window, d.gameMatrix)

	if d.isDebug {
		debugSprite := getSpriteFromImage(d.debugRgba)
		debugSprite.Draw(d.window, d.debugMatrix)
		d.debugRegText.Draw(d.window, pixel.IM)
		d.debugInstText.Draw(d.window, pixel.IM)
		d.debugControllerText.Draw(d.window, pixel.IM)
	}

	d.window.Update()
}

func getSpriteFromImage(img *image.RGBA) *pixel.Sprite {
	pic := pixel.PictureDataFromImage(img)
	return pixel.NewSprite(pic, pic.Bounds())
}

// pollButtons reads the live key state into a standard NES button
// bitmask, published to the controller from the input/event thread (spec
// §5 Concurrency Model).
func pollButtons(win *pixelgl.Window) byte {
	var mask byte
	press := func(btn pixelgl.Button, bit byte) {
		if win.Pressed(btn) {
			mask |= bit
		}
	}
	press(pixelgl.KeyZ, nes.ButtonA)
	press(pixelgl.KeyX, nes.ButtonB)
	press(pixelgl.KeyRightShift, nes.ButtonSelect)
	press(pixelgl.KeyEnter, nes.ButtonStart)
	press(pixelgl.KeyUp, nes.ButtonUp)
	press(pixelgl.KeyDown, nes.ButtonDown)
	press(pixelgl.KeyLeft, nes.ButtonLeft)
	press(pixelgl.KeyRight, nes.ButtonRight)
	return mask
}
