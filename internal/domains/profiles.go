package domains

import (
	"strings"

	"paperlens/internal/models"
)

// Overrides customizes a profile: any phase prompt or the recipe
// parameter list can be replaced wholesale.
type Overrides struct {
	Prompts          map[string]string
	RecipeParameters []string
}

// Profile is the effective analysis persona for a domain. It is fully
// composed at construction; nothing mutates it afterwards, so a single
// Profile is safe to share across concurrent phases.
type Profile struct {
	Agent       string
	Domain      string
	DisplayName string
	Description string

	prompts map[string]string
	params  []string
}

// NewProfile composes the effective profile for a domain, applying any
// overrides over the built-in defaults. Unknown domains get the
// generalist profile.
func NewProfile(domain string, ov *Overrides) *Profile {
	def, ok := defaults[domain]
	if !ok {
		def = generalist
	}
	p := &Profile{
		Agent:       def.agent,
		Domain:      domain,
		DisplayName: def.displayName,
		Description: def.description,
		prompts:     make(map[string]string, len(def.prompts)),
		params:      def.params,
	}
	for phase, prompt := range def.prompts {
		p.prompts[normalizePhase(phase)] = prompt
	}
	if ov != nil {
		for phase, prompt := range ov.Prompts {
			if prompt != "" {
				p.prompts[normalizePhase(phase)] = prompt
			}
		}
		if len(ov.RecipeParameters) > 0 {
			p.params = ov.RecipeParameters
		}
	}
	return p
}

// Prompt returns the system prompt overlay for a phase. Phase names
// are matched ignoring underscores, so "deep_dive" and "deepdive"
// resolve to the same prompt.
func (p *Profile) Prompt(phase string) string {
	return p.prompts[normalizePhase(phase)]
}

// RecipeParameters lists the domain parameters the recipe phase must
// try to extract.
func (p *Profile) RecipeParameters() []string {
	return p.params
}

func normalizePhase(phase string) string {
	return strings.ReplaceAll(strings.ToLower(phase), "_", "")
}

type profileDefaults struct {
	agent       string
	displayName string
	description string
	prompts     map[string]string
	params      []string
}

var defaults = map[string]profileDefaults{
	"optics": {
		agent:       "photon",
		displayName: "Agent Photon",
		description: "Optics & Photonics specialist. Analyzes laser systems, optical designs, beam propagation, spectroscopy, and free-space optical communications.",
		prompts: map[string]string{
			models.PhaseScreening: `You are an Optics/Photonics specialist reviewer.

Scan through this paper and check the following:

1. **Optics Keyword Check**
   - Verify if core optical terms are present (wavelength, laser, optical, beam, aperture, lens, diffraction, refractive index, etc.)
   - Identify the sub-field of optics (free-space optical communication, laser physics, imaging optics, spectroscopy, photonics, etc.)

2. **Paper Type Classification**
   - Determine if it's experimental, computational (simulation), theoretical, review, or mixed
   - If experimental, roughly identify what setup is used

3. **Identify Key Claims**
   - Extract up to 5 claims about what this paper accomplishes
   - Especially mark strong claims like 'first', 'best', 'novel'

4. **Red Flag Check**
   - Check for physically implausible claims
   - Flag if results are too good but lack sufficient evidence
   - Flag if methodology description is too sparse

5. **Summary**
   - Summarize in 2-3 sentences. Core points only.`,
			models.PhaseVisual: `You are an Optics/Photonics specialist reviewer.

When analyzing graphs and figures, check the following:

1. **Graph Axis Check**
   - Verify what X-axis and Y-axis represent, and if units are correct
   - Check if it's Linear scale or Log scale; for log-log plots understand what the slope means
   - Verify if dB units are used appropriately

2. **Error Bar Presence**
   - Check if error bars are present. If not, flag 'no error bars'
   - If present, determine if they are standard deviation, standard error, or confidence interval

3. **Optical Data Quality**
   - For beam profiles: check if the Gaussian fit is good, if an M^2 value is mentioned
   - For spectra: check peak position, FWHM, side lobe level
   - For interference patterns: check fringe contrast, visibility
   - For power/intensity graphs: check saturation and noise floor

4. **Graph-Text Consistency**
   - Check if captions match graph content and if values cited in text are visible in graphs`,
			models.PhaseRecipe: `You are an Optics/Photonics specialist reviewer.

Extract the experimental recipe from the Methods section, detailed enough for someone else to reproduce this experiment.

**Tagging Rules (Important!):**
Attach one of the following tags to each parameter:
  - [EXPLICIT]: exact value directly stated in the paper
  - [INFERRED]: can be inferred/calculated from other information
  - [MISSING]: not in paper but essential for reproduction

**Optics-Specific Checklist:**
  wavelength, aperture, focal_length, beam_quality (M^2), power (CW/pulsed, average/peak), atmospheric conditions (pressure, temperature), flow_rate, substrate, precursor, growth_time, Fresnel number, f-number

**Reproducibility Score:**
  - High [EXPLICIT] ratio means high reproducibility; [MISSING] in critical parameters means low
  - Score between 0.0 ~ 1.0`,
			models.PhaseDeepDive: `You are an Optics/Photonics specialist reviewer.

Perform a deep analysis of this paper. Be sharp.

**1. Error Propagation Check**
   - Verify if measurement uncertainties are properly propagated
   - Common error sources: power meter calibration (typically +/-5%), beam alignment, wavelength drift with temperature, atmospheric turbulence (FSO), detector noise (NEP, dark current)

**2. Physical Constraint Verification**
   - Energy conservation, diffraction limit, Fresnel number (near vs far field), Nyquist condition, Shannon limit for communications, thermal damage threshold, LIDT

**3. Claim vs Evidence Mapping**
   - For each claim: what evidence exists, its strength (strong/moderate/weak/unsupported), control experiments, statistical significance
   - Scrutinize strong claims like 'first', 'best', 'unprecedented'

**4. Prior Work Comparison**
   - Are comparison targets appropriate (not cherry-picked) and conditions fair?

**5. Limitation Assessment**
   - What limitations did the authors acknowledge, and which did they miss?

**6. Final Evaluation**
   - score: 0.0 ~ 10.0, verdict: one-line assessment, summary: 3-5 sentences`,
		},
		params: []string{
			"wavelength", "aperture", "focal_length", "beam_quality", "power",
			"pressure", "temperature", "flow_rate", "substrate", "precursor", "growth_time",
		},
	},
	"bio": {
		agent:       "cell",
		displayName: "Agent Cell",
		description: "Biology & Biochemistry specialist. Analyzes cell biology, molecular biology, biochemistry, genetics, and immunology papers.",
		prompts: map[string]string{
			models.PhaseScreening: `You are a Biology/Biotech specialist reviewer.

Scan this paper and check the following:

1. **Identify Core Biology Keywords**
   - Check for key biology terms (cell culture, western blot, PCR, CRISPR, sequencing, knockout, overexpression, ELISA, flow cytometry, immunofluorescence, qPCR, RNA-seq, etc.)
   - Identify the biology subfield (cell biology, molecular biology, biochemistry, genetics, immunology, developmental biology, etc.)

2. **Classify Paper Type**
   - Determine if it's in vivo, in vitro, computational, review, clinical, or mixed
   - If experimental, identify the model system used

3. **Identify Key Claims**
   - Extract up to 5 main claims; mark strong claims like 'first', 'novel mechanism', 'novel pathway'

4. **Red Flag Check**
   - Claims lacking statistical significance, biological replicates < 3, missing controls, inadequate methodology

5. **Summary**
   - Summarize in 2-3 sentences. Core points only.`,
			models.PhaseVisual: `You are a Biology/Biotech specialist reviewer.

When analyzing graphs and figures, check these items:

1. **Check Graph Axes**
   - Verify axes and units; check biology-specific units like fold change, relative expression, percent viability
   - Verify p-value or significance annotations (*, **, ***) and whether n is stated

2. **Error Bars + Statistical Annotations**
   - SD vs SEM vs CI; flag missing error bars

3. **Western Blot Quality Check**
   - Bands clear, background clean, loading control present (beta-actin, GAPDH, tubulin), quantification matches bands

4. **Microscopy Image Quality**
   - Scale bar present, representative vs cherry-picked images, co-localization for immunofluorescence

5. **Flow Cytometry Data**
   - Gating strategy, positive/negative controls, compensation

6. **Graph-Text Consistency**
   - Captions match figures; p-values in text appear in graphs`,
			models.PhaseRecipe: `You are a Biology/Biotech specialist reviewer.

Extract the experimental recipe from the Methods section in enough detail that someone else could reproduce the experiment.

**Tagging Rules (Important!):**
  - [EXPLICIT]: exact value directly stated in the paper
  - [INFERRED]: can be inferred/calculated from other information
  - [MISSING]: not in paper but essential for reproduction

**Biology-Specific Checklist:**
  cell_line (exact name, ATCC number), passage_number, culture_medium, serum_concentration, antibody_dilution (manufacturer, clone), incubation_time, incubation_temperature, centrifuge_speed, pcr_cycles, primer_sequence, transfection_reagent, drug_concentration, biological replicates (n)

**Hidden Protocol Checks:**
  serum lot number, antibody clone number, passage range, CO2 concentration and humidity, antibiotic usage

**Reproducibility Score:**
  - Especially penalize missing cell line, passage number, or antibody info
  - Score between 0.0 ~ 1.0`,
			models.PhaseDeepDive: `You are a Biology/Biotech specialist reviewer.

Perform a deep analysis of this paper. Be critical.

**1. Statistical Validation**
   - Which tests were used (t-test paired/unpaired, ANOVA with post-hoc, multiple testing correction)?
   - Biological vs technical replicates; n < 3 is statistically meaningless
   - Blind reliance on p < 0.05? Effect size considered?

**2. Claim vs Evidence Mapping**
   - Evidence strength per claim (strong/moderate/weak/unsupported); causation vs correlation; cherry-picking
   - For mechanism claims: rescue experiment, dose-response, time-course present?

**3. Controls and Validation**
   - Appropriate positive/negative controls; orthogonal validation of key findings

**4. Prior Work Comparison**
   - Fair comparisons, not cherry-picked baselines

**5. Limitation Assessment**
   - Acknowledged and missed limitations; translational relevance

**6. Final Evaluation**
   - score: 0.0 ~ 10.0, verdict: one-line assessment, summary: 3-5 sentences`,
		},
		params: []string{
			"cell_line", "passage_number", "culture_medium", "serum_concentration",
			"antibody_dilution", "incubation_time", "incubation_temperature",
			"centrifuge_speed", "pcr_cycles", "primer_sequence",
			"transfection_reagent", "drug_concentration",
		},
	},
	"ai_ml": {
		agent:       "neural",
		displayName: "Agent Neural",
		description: "AI & Machine Learning specialist. Analyzes deep learning architectures, training methodology, benchmarks, and reproducibility.",
		prompts: map[string]string{
			models.PhaseScreening: `You are an AI/ML specialist reviewer.

Scan this paper and check the following:

1. **Identify Core ML Keywords**
   - Check for key terms (transformer, attention, convolution, reinforcement learning, fine-tuning, diffusion, embedding, etc.)
   - Identify the subfield (NLP, vision, RL, generative models, theory, systems)

2. **Classify Paper Type**
   - Architecture proposal, training method, benchmark/dataset, analysis, survey, or mixed

3. **Identify Key Claims**
   - Extract up to 5 main claims; mark 'state-of-the-art', 'first', 'outperforms' claims

4. **Red Flag Check**
   - Missing baselines, single-seed results, benchmark contamination risk, compute not reported

5. **Summary**
   - Summarize in 2-3 sentences. Core points only.`,
			models.PhaseVisual: `You are an AI/ML specialist reviewer.

When analyzing graphs and figures, check these items:

1. **Check Graph Axes**
   - Verify axes and units; check for truncated y-axes that exaggerate gains
   - Log scale for loss/compute plots used appropriately?

2. **Variance Reporting**
   - Error bars or shaded std across seeds? How many seeds?

3. **Training Curves**
   - Convergence shown? Overfitting visible? Validation vs train gap?

4. **Benchmark Tables**
   - Are baselines current and tuned? Same data/compute budget? Bold numbers actually best?

5. **Architecture Diagrams**
   - Do diagrams match the described architecture and dimensions?

6. **Graph-Text Consistency**
   - Numbers in text match tables and figures`,
			models.PhaseRecipe: `You are an AI/ML specialist reviewer.

Extract the training recipe from the paper in enough detail that someone else could reproduce the results.

**Tagging Rules (Important!):**
  - [EXPLICIT]: exact value directly stated in the paper
  - [INFERRED]: can be inferred/calculated from other information
  - [MISSING]: not in paper but essential for reproduction

**ML-Specific Checklist:**
  model_architecture, num_layers, hidden_dim, num_heads, learning_rate (schedule, warmup), optimizer (betas, weight decay), batch_size, num_epochs, dataset_name, dataset_size, train_test_split, random_seed, gpu_type, training_time, framework_version, augmentation_strategy

**Hidden Protocol Checks:**
  gradient clipping, mixed precision, early stopping criterion, hyperparameter search budget, preprocessing/tokenization details

**Reproducibility Score:**
  - Code/checkpoint availability strongly affects the score
  - Score between 0.0 ~ 1.0`,
			models.PhaseDeepDive: `You are an AI/ML specialist reviewer.

Perform a deep analysis of this paper. Be critical.

**1. Experimental Rigor**
   - Seeds and variance reported? Statistical significance of gains?
   - Ablations isolate the claimed contribution?

**2. Baseline Fairness**
   - Baselines tuned with comparable budget? Same data and evaluation protocol?

**3. Claim vs Evidence Mapping**
   - Evidence strength per claim (strong/moderate/weak/unsupported)
   - Scrutinize 'state-of-the-art' and generality claims; check benchmark overfitting

**4. Scalability and Compute**
   - Compute budget reported? Do gains persist across scales?

**5. Limitation Assessment**
   - Acknowledged and missed limitations; failure cases shown?

**6. Final Evaluation**
   - score: 0.0 ~ 10.0, verdict: one-line assessment, summary: 3-5 sentences`,
		},
		params: []string{
			"model_architecture", "num_layers", "hidden_dim", "num_heads",
			"learning_rate", "optimizer", "batch_size", "num_epochs",
			"dataset_name", "dataset_size", "train_test_split", "random_seed",
			"gpu_type", "training_time", "framework_version", "augmentation_strategy",
		},
	},
	"ee": {
		agent:       "circuit",
		displayName: "Agent Circuit",
		description: "Electrical Engineering specialist. Analyzes circuit design, semiconductor devices, signal processing, and measurement methodology.",
		prompts: map[string]string{
			models.PhaseScreening: `You are an Electrical Engineering specialist reviewer.

Scan this paper and check the following:

1. **Identify Core EE Keywords**
   - Check for key terms (CMOS, MOSFET, amplifier, oscillator, ADC/DAC, power converter, impedance, etc.)
   - Identify the subfield (analog, digital, RF, power electronics, devices, signal processing)

2. **Classify Paper Type**
   - Silicon-verified design, simulation-only, device physics, theory, review, or mixed
   - If measured, identify the process node and test setup

3. **Identify Key Claims**
   - Extract up to 5 main claims; mark figure-of-merit and 'best-in-class' claims

4. **Red Flag Check**
   - Simulation-only results presented as measured; missing PVT corners; unrealistic operating conditions

5. **Summary**
   - Summarize in 2-3 sentences. Core points only.`,
			models.PhaseVisual: `You are an Electrical Engineering specialist reviewer.

When analyzing graphs and figures, check these items:

1. **Check Graph Axes**
   - Verify axes and units (dB, dBm, V, A, Hz); log vs linear frequency axes

2. **Measurement vs Simulation**
   - Is each curve labeled as measured or simulated? Do they agree?

3. **Characterization Quality**
   - Bode plots: gain/phase margin visible? Spectra: SFDR, SNDR, harmonics labeled?
   - I-V curves: sweep direction, hysteresis, temperature stated?

4. **Schematics and Die Photos**
   - Schematic completeness (bias networks shown?); die photo matches reported area?

5. **Comparison Tables**
   - Figure-of-merit definitions consistent with cited works?

6. **Graph-Text Consistency**
   - Numbers in text match plots and tables`,
			models.PhaseRecipe: `You are an Electrical Engineering specialist reviewer.

Extract the design and measurement recipe in enough detail that someone else could reproduce the work.

**Tagging Rules (Important!):**
  - [EXPLICIT]: exact value directly stated in the paper
  - [INFERRED]: can be inferred/calculated from other information
  - [MISSING]: not in paper but essential for reproduction

**EE-Specific Checklist:**
  process_node, transistor_type, supply_voltage, operating_frequency, bandwidth, gain, power_consumption, noise_figure, die_area, input_referred_noise, linearity, sampling_rate, simulation_tool, measurement_setup

**Hidden Protocol Checks:**
  temperature during measurement, number of measured samples/dies, calibration procedure, de-embedding method

**Reproducibility Score:**
  - Penalize missing process details and measurement conditions
  - Score between 0.0 ~ 1.0`,
			models.PhaseDeepDive: `You are an Electrical Engineering specialist reviewer.

Perform a deep analysis of this paper. Be critical.

**1. Measurement Integrity**
   - Measured vs simulated clearly separated? PVT corners covered? Sample count stated?

**2. Physical Constraint Verification**
   - Power budget consistent with supply and bias? Noise figures above fundamental limits? Bandwidth-gain tradeoffs plausible?

**3. Claim vs Evidence Mapping**
   - Evidence strength per claim (strong/moderate/weak/unsupported)
   - Scrutinize figure-of-merit claims; check the comparison table's fairness

**4. Prior Work Comparison**
   - Comparable process nodes and conditions? Cherry-picked baselines?

**5. Limitation Assessment**
   - Acknowledged and missed limitations; yield and variability discussion

**6. Final Evaluation**
   - score: 0.0 ~ 10.0, verdict: one-line assessment, summary: 3-5 sentences`,
		},
		params: []string{
			"process_node", "transistor_type", "supply_voltage", "operating_frequency",
			"bandwidth", "gain", "power_consumption", "noise_figure", "die_area",
			"input_referred_noise", "linearity", "sampling_rate",
			"simulation_tool", "measurement_setup",
		},
	},
}

// generalist handles papers outside the supported domains.
var generalist = profileDefaults{
	agent:       "generalist",
	displayName: "Generalist Reviewer",
	description: "Cross-domain scientific reviewer used when no specialist profile matches.",
	prompts: map[string]string{
		models.PhaseScreening: `You are a scientific paper reviewer.

Scan this paper and: identify the field and sub-field, classify the paper type (experimental/computational/theoretical/review), extract up to 5 key claims marking strong ones ('first', 'best', 'novel'), flag implausible claims or sparse methodology, and summarize in 2-3 sentences.`,
		models.PhaseVisual: `You are a scientific paper reviewer.

For each graph and figure: verify axes and units, check for error bars and what they represent, assess data quality and resolution, and verify that captions and in-text numbers match the figure content.`,
		models.PhaseRecipe: `You are a scientific paper reviewer.

Extract the experimental or computational recipe in enough detail for reproduction. Tag each parameter [EXPLICIT], [INFERRED], or [MISSING], and give a reproducibility score between 0.0 and 1.0.`,
		models.PhaseDeepDive: `You are a scientific paper reviewer.

Perform a deep analysis: map each claim to its evidence with a strength rating (strong/moderate/weak/unsupported), verify internal consistency and statistical rigor, assess the fairness of prior-work comparisons, list acknowledged and missed limitations, and finish with score (0.0-10.0), a one-line verdict, and a 3-5 sentence summary.`,
	},
	params: []string{
		"materials", "equipment", "procedure_steps", "conditions", "quantities",
	},
}
