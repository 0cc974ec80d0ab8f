package domains

// Spec defines a scientific domain and the keywords that identify it.
// Weighted keywords are multi-word, domain-specific phrases that count
// double when scoring.
type Spec struct {
	Name             string
	DisplayName      string
	AgentName        string
	Keywords         []string
	WeightedKeywords []string
}

const Unknown = "unknown"

var Specs = map[string]Spec{
	"optics": {
		Name:        "optics",
		DisplayName: "Optics & Photonics",
		AgentName:   "photon",
		Keywords: []string{
			"wavelength", "laser", "optical", "photon", "lens",
			"aperture", "fso", "turbulence", "diffraction", "refractive",
			"beam", "spectroscopy", "fiber", "coherence", "polarization",
		},
		WeightedKeywords: []string{
			"free-space optical", "adaptive optics", "beam propagation",
			"wavefront", "interferometer", "spectrometer",
			"photonic crystal", "optical fiber", "laser diode",
			"focal length", "numerical aperture", "fresnel",
			"scintillation", "beam quality", "m-squared",
			"mode-locked", "femtosecond", "photoluminescence",
		},
	},
	"bio": {
		Name:        "bio",
		DisplayName: "Biology & Biochemistry",
		AgentName:   "cell",
		Keywords: []string{
			"cell", "protein", "gene", "dna", "rna",
			"enzyme", "tissue", "antibody", "metabolite", "sequencing",
		},
		WeightedKeywords: []string{
			"crispr", "western blot", "pcr", "immunofluorescence",
			"cell culture", "gene expression", "protein folding",
			"genome", "transcriptome", "proteome", "metabolome",
			"in vivo", "in vitro", "apoptosis", "proliferation",
			"plasmid", "transfection", "knock-out",
		},
	},
	"ai_ml": {
		Name:        "ai_ml",
		DisplayName: "AI & Machine Learning",
		AgentName:   "neural",
		Keywords: []string{
			"neural network", "deep learning", "transformer", "attention",
			"gradient", "backpropagation", "loss function", "dataset",
			"training",
		},
		WeightedKeywords: []string{
			"convolutional neural network", "recurrent neural network",
			"generative adversarial", "reinforcement learning",
			"fine-tuning", "pre-training", "language model",
			"batch normalization", "dropout", "embedding",
			"cross-entropy", "softmax", "bert", "gpt",
			"diffusion model", "variational autoencoder",
		},
	},
	"ee": {
		Name:        "ee",
		DisplayName: "Electrical Engineering",
		AgentName:   "circuit",
		Keywords: []string{
			"semiconductor", "transistor", "cmos", "voltage", "current",
			"circuit", "impedance", "power",
		},
		WeightedKeywords: []string{
			"mosfet", "finfet", "gate oxide", "doping",
			"integrated circuit", "vlsi", "analog circuit",
			"digital circuit", "signal processing", "amplifier",
			"oscillator", "power converter", "pcb",
			"electromigration", "threshold voltage", "leakage current",
		},
	},
}

// Known reports whether a domain key is one of the supported domains.
func Known(domain string) bool {
	_, ok := Specs[domain]
	return ok
}
